package registry

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func setupLevelDB() (*LevelDBStorage, string, func() error, error) {
	// Temp database file
	// Replace Windows-based backslashes with slash (not parsed as Path by net/url)
	osTemp := strings.Replace(os.TempDir(), "\\", "/", -1)
	dbName := fmt.Sprintf("%d.ldb", time.Now().UnixNano())
	tempFile := fmt.Sprintf("%s/cas-test/%s", osTemp, dbName)
	storage, closeDB, err := NewLevelDBStorage(tempFile, nil)
	if err != nil {
		return nil, dbName, nil, err
	}
	return storage, dbName, closeDB, nil
}

// Remove temporary database files
func clean(dbName string) {
	tempDir := fmt.Sprintf("%s/cas-test/%s", os.TempDir(), dbName)
	err := os.RemoveAll(tempDir)
	if err != nil {
		fmt.Println(err.Error())
	}
}

func TestLevelDBStorage(t *testing.T) {
	storage, dbName, closeDB, err := setupLevelDB()
	if err != nil {
		t.Fatal(err.Error())
	}
	defer clean(dbName)
	defer closeDB()

	runStorageTests(t, storage)
}
