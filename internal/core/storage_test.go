package core

import (
	"path/filepath"
	"testing"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	t.Setenv("RAISECORE_STORAGE_DRIVER", "memory")
	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store == nil {
		t.Fatalf("nil store")
	}
}

func TestOpenPersistentStoreSQLite(t *testing.T) {
	t.Setenv("RAISECORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("RAISECORE_SQLITE_PATH", filepath.Join(t.TempDir(), "raise.db"))
	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if store == nil {
		t.Fatalf("nil store")
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	t.Setenv("RAISECORE_STORAGE_DRIVER", "tape")
	if _, err := OpenPersistentStore(NewDefaultRulesEngine()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
