package main

import (
	"testing"

	"github.com/postdesk/internal/config"
	"github.com/postdesk/internal/storage"
)

func TestOpenBlobStoreLocal(t *testing.T) {
	dir := t.TempDir()
	store, err := openBlobStore(config.StorageConfig{Driver: "local", UploadDir: dir, UploadURLPath: "/static/uploads"})
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	local, ok := store.(*storage.LocalStore)
	if !ok {
		t.Fatalf("expected *storage.LocalStore, got %T", store)
	}
	if got := local.URL("temp/a.png"); got != "/static/uploads/temp/a.png" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestOpenBlobStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := openBlobStore(config.StorageConfig{Driver: "ftp"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	root.AddCommand(newServeCommand(), newSweepTempCommand(), newEnsureUserCommand())

	for _, name := range []string{"serve", "sweep-temp", "ensure-user"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %s not registered: %v", name, err)
		}
	}
}
