package common

import (
	"os"
)

const EnvDebug = "CAS_LOG_DEBUG"

// DebugLogs enables verbose logging of per-ticket operations
var DebugLogs bool

func init() {
	DebugLogs = EvalEnv(EnvDebug)
}

// EvalEnv returns the boolean value of the env variable with the given key
func EvalEnv(key string) bool {
	return os.Getenv(key) == "1" || os.Getenv(key) == "true" || os.Getenv(key) == "TRUE"
}
