package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
)

func writeLocal(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".md"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRenderPrefersWiki(t *testing.T) {
	dir := t.TempDir()
	writeLocal(t, dir, "greeting", "local hello {name}")

	platform := ports.NewMockPlatform()
	platform.WikiPages["trade-confirmation-bot/greeting"] = "wiki hello {name}"

	s := NewSource(platform, dir, time.Minute)
	out, err := s.Render(context.Background(), "greeting", map[string]string{"name": "sam"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "wiki hello sam" {
		t.Errorf("Render = %q", out)
	}

	// Second render comes from cache, not another wiki fetch.
	if _, err := s.Render(context.Background(), "greeting", map[string]string{"name": "kim"}); err != nil {
		t.Fatal(err)
	}
	if n := platform.CallCount("GetWikiPage"); n != 1 {
		t.Errorf("expected 1 wiki fetch, got %d", n)
	}
}

func TestRenderFallsBackOnMissingWikiPage(t *testing.T) {
	dir := t.TempDir()
	writeLocal(t, dir, "greeting", "local hello {name}")

	s := NewSource(ports.NewMockPlatform(), dir, time.Minute)
	out, err := s.Render(context.Background(), "greeting", map[string]string{"name": "sam"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "local hello sam" {
		t.Errorf("Render = %q", out)
	}
}

func TestRenderFallsBackOnBrokenWikiTemplate(t *testing.T) {
	dir := t.TempDir()
	writeLocal(t, dir, "greeting", "local hello {name}")

	platform := ports.NewMockPlatform()
	// The wiki copy references a placeholder the caller never supplies.
	platform.WikiPages["trade-confirmation-bot/greeting"] = "wiki hello {nmae}"

	s := NewSource(platform, dir, time.Minute)
	out, err := s.Render(context.Background(), "greeting", map[string]string{"name": "sam"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "local hello sam" {
		t.Errorf("Render = %q", out)
	}
}

func TestRenderErrorsWhenNothingResolves(t *testing.T) {
	s := NewSource(ports.NewMockPlatform(), t.TempDir(), time.Minute)
	if _, err := s.Render(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestReloadDropsCache(t *testing.T) {
	dir := t.TempDir()
	writeLocal(t, dir, "greeting", "hello {name}")

	platform := ports.NewMockPlatform()
	platform.WikiPages["trade-confirmation-bot/greeting"] = "wiki {name}"

	s := NewSource(platform, dir, time.Minute)
	if _, err := s.Render(context.Background(), "greeting", map[string]string{"name": "a"}); err != nil {
		t.Fatal(err)
	}
	s.Reload()
	if _, err := s.Render(context.Background(), "greeting", map[string]string{"name": "b"}); err != nil {
		t.Fatal(err)
	}
	if n := platform.CallCount("GetWikiPage"); n != 2 {
		t.Errorf("expected refetch after Reload, got %d", n)
	}
}
