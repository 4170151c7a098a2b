package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"samplecore/internal/config"
)

func TestRootCommandWiresSubcommands(t *testing.T) {
	root := NewRootCommand()
	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "reconcile"} {
		if !names[want] {
			t.Fatalf("missing subcommand %q", want)
		}
	}
}

func TestReconcileAgainstEmptyStore(t *testing.T) {
	t.Setenv("SAMPLECORE_STORE_DRIVER", "memory")

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"reconcile"})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !strings.Contains(out.String(), "0 orphaned revision(s) removed") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestBuildLogger(t *testing.T) {
	if _, err := buildLogger(config.LogConfig{Level: "debug", Development: true}); err != nil {
		t.Fatalf("development logger: %v", err)
	}
	if _, err := buildLogger(config.LogConfig{Level: "info"}); err != nil {
		t.Fatalf("production logger: %v", err)
	}
	if _, err := buildLogger(config.LogConfig{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestOpenStoreSelectsDriver(t *testing.T) {
	ctx := context.Background()

	mem, closeMem, err := openStore(ctx, config.StoreConfig{Driver: "memory"})
	if err != nil || mem == nil {
		t.Fatalf("memory store: %v", err)
	}
	if err := closeMem(); err != nil {
		t.Fatalf("close memory: %v", err)
	}

	sq, closeSQ, err := openStore(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: t.TempDir() + "/catalog.db"})
	if err != nil || sq == nil {
		t.Fatalf("sqlite store: %v", err)
	}
	if err := closeSQ(); err != nil {
		t.Fatalf("close sqlite: %v", err)
	}

	if _, _, err := openStore(ctx, config.StoreConfig{Driver: "etcd"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
