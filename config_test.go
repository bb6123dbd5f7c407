package main

import (
	"os"
	"path/filepath"
	"testing"
)

const validConf = `{
	"http": {"bindAddr": "0.0.0.0", "bindPort": 8080},
	"registry": {
		"backend": {"type": "memory"}
	},
	"tickets": {
		"ticketGrantingTicket": {"maxLifetimeSeconds": 28800, "maxIdleSeconds": 7200},
		"serviceTicket": {"maxUses": 1, "timeoutSeconds": 10}
	},
	"auth": {"users": {"alice": "secret"}}
}`

func writeConf(t *testing.T, content string) *string {
	path := filepath.Join(t.TempDir(), "cas.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err.Error())
	}
	return &path
}

func TestLoadConfig(t *testing.T) {
	conf, err := loadConfig(writeConf(t, validConf))
	if err != nil {
		t.Fatalf("Received unexpected error: %s", err)
	}
	if conf.HTTP.BindPort != 8080 {
		t.Fatalf("Parsed bind port %d, expected 8080", conf.HTTP.BindPort)
	}
	if conf.Registry.SweepInterval != 60 {
		t.Fatalf("Sweep interval not defaulted: %d", conf.Registry.SweepInterval)
	}
	if conf.Tickets.ST.MaxUses != 1 {
		t.Fatalf("Parsed ST use count %d, expected 1", conf.Tickets.ST.MaxUses)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	invalid := []string{
		`{`, // malformed
		`{"http": {"bindAddr": "0.0.0.0"}}`, // no port
		`{
			"http": {"bindAddr": "0.0.0.0", "bindPort": 8080},
			"registry": {"backend": {"type": "cassandra"}},
			"tickets": {
				"ticketGrantingTicket": {"maxLifetimeSeconds": 28800},
				"serviceTicket": {"maxUses": 1, "timeoutSeconds": 10}
			},
			"auth": {"users": {"alice": "secret"}}
		}`, // unsupported backend
		`{
			"http": {"bindAddr": "0.0.0.0", "bindPort": 8080},
			"registry": {"backend": {"type": "memory"}},
			"tickets": {
				"ticketGrantingTicket": {"maxLifetimeSeconds": 28800},
				"serviceTicket": {"maxUses": 0, "timeoutSeconds": 10}
			},
			"auth": {"users": {"alice": "secret"}}
		}`, // non-positive ST uses
		`{
			"http": {"bindAddr": "0.0.0.0", "bindPort": 8080},
			"registry": {
				"backend": {"type": "memory"},
				"replication": {"enabled": true}
			},
			"tickets": {
				"ticketGrantingTicket": {"maxLifetimeSeconds": 28800},
				"serviceTicket": {"maxUses": 1, "timeoutSeconds": 10}
			},
			"auth": {"users": {"alice": "secret"}}
		}`, // replication without broker
		`{
			"http": {"bindAddr": "0.0.0.0", "bindPort": 8080},
			"registry": {"backend": {"type": "memory"}},
			"tickets": {
				"ticketGrantingTicket": {"maxLifetimeSeconds": 28800},
				"serviceTicket": {"maxUses": 1, "timeoutSeconds": 10}
			},
			"auth": {}
		}`, // no users
	}

	for i, content := range invalid {
		if _, err := loadConfig(writeConf(t, content)); err == nil {
			t.Fatalf("Expected an error loading invalid config %d", i)
		}
	}
}
