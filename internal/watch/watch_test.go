package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"
)

func TestWatcherRerunsOnChange(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")

	w := New([]string{envFile}, zerolog.Nop())
	w.SetDelay(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	passes := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			passes <- struct{}{}
			return nil
		})
	}()

	waitPass := func() {
		c.Helper()
		select {
		case <-passes:
		case <-time.After(5 * time.Second):
			c.Fatal("timed out waiting for build pass")
		}
	}

	// Initial pass.
	waitPass()

	// Creating the missing optional file triggers a pass.
	c.Assert(os.WriteFile(envFile, []byte("GMAPS_API_KEY=ABC123\n"), 0o600), qt.IsNil)
	waitPass()

	cancel()
	select {
	case err := <-done:
		c.Assert(err, qt.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("watcher did not stop after cancel")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()

	w := New([]string{filepath.Join(dir, "local.properties")}, zerolog.Nop())
	w.SetDelay(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	passes := make(chan struct{}, 10)
	go func() {
		_ = w.Run(ctx, func(context.Context) error {
			passes <- struct{}{}
			return nil
		})
	}()

	select {
	case <-passes:
	case <-time.After(5 * time.Second):
		c.Fatal("timed out waiting for initial pass")
	}

	c.Assert(os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600), qt.IsNil)

	select {
	case <-passes:
		c.Fatal("unexpected pass for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}
