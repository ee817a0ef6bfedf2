package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/projector/pkg/cache"
)

func TestOpenCache(t *testing.T) {
	ctx := context.Background()
	c := New(os.Stderr, LogInfo)
	c.Config.Cache = cache.Config{Backend: cache.BackendFile, Dir: t.TempDir()}

	store, err := c.openCache(ctx, false)
	if err != nil {
		t.Fatalf("openCache: %v", err)
	}
	if _, ok := store.(*cache.FileCache); !ok {
		t.Errorf("file backend opened %T", store)
	}

	store, err = c.openCache(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*cache.NullCache); !ok {
		t.Errorf("--no-cache opened %T", store)
	}

	c.Config.Cache = cache.Config{Backend: "memcached"}
	if _, err := c.openCache(ctx, false); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestCacheClearCommand(t *testing.T) {
	dir := t.TempDir()
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, k := range []string{"solution:a", "solution:b"} {
		if err := fc.Set(ctx, k, []byte("{}"), time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	cfgPath := writeConfig(t, "[cache]\nbackend = \"file\"\ndir = \""+filepath.ToSlash(dir)+"\"\n")
	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"--config", cfgPath, "cache", "clear"})
	if err := root.ExecuteContext(ctx); err != nil {
		t.Fatalf("cache clear: %v", err)
	}

	if _, hit, _ := fc.Get(ctx, "solution:a"); hit {
		t.Error("entries should be gone after clear")
	}
}
