package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func reset() {
	globalConfig = nil
	configFilePath = ""
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFileDefaults(t *testing.T) {
	reset()
	path := writeConfig(t, `
subreddit:
  name: pkmntcgtrades
  bot_username: tradebot
`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SubredditName != "pkmntcgtrades" || cfg.BotUsername != "tradebot" {
		t.Errorf("subreddit block: %+v", cfg)
	}
	if cfg.Poller.MinDelay != 1*time.Second || cfg.Poller.MaxDelay != 16*time.Second {
		t.Errorf("poller delay defaults: %+v", cfg.Poller)
	}
	if cfg.Poller.MaxIterations != 500 || cfg.Poller.SeenCap != 1000 || cfg.Poller.GapScanThreshold != 900 {
		t.Errorf("poller bound defaults: %+v", cfg.Poller)
	}
	if cfg.Poller.ListingLimit != 1000 {
		t.Errorf("poller listing default: %+v", cfg.Poller)
	}
	if cfg.Coordinator.MaxCachedResults != 2000 || cfg.Coordinator.RotateAfter != 500 {
		t.Errorf("coordinator defaults: %+v", cfg.Coordinator)
	}
	if cfg.ControlPlane.ListenAddr != ":8720" {
		t.Errorf("control plane defaults: %+v", cfg.ControlPlane)
	}
	if cfg.TemplatesDir != "mdtemplates" || cfg.DataDir != "data" {
		t.Errorf("dir defaults: %q %q", cfg.TemplatesDir, cfg.DataDir)
	}
}

func TestLoadFromFileOverrides(t *testing.T) {
	reset()
	path := writeConfig(t, `
subreddit:
  name: mechmarket
poller:
  min_delay_seconds: 2
  max_delay_seconds: 30
  seen_cap: 50
control_plane:
  listen_addr: ":9000"
`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Poller.MinDelay != 2*time.Second || cfg.Poller.MaxDelay != 30*time.Second {
		t.Errorf("poller delays: %+v", cfg.Poller)
	}
	if cfg.Poller.SeenCap != 50 {
		t.Errorf("seen cap: %d", cfg.Poller.SeenCap)
	}
	if cfg.ControlPlane.ListenAddr != ":9000" {
		t.Errorf("listen addr: %s", cfg.ControlPlane.ListenAddr)
	}
}

func TestLoadRequiresSubreddit(t *testing.T) {
	reset()
	path := writeConfig(t, `log_level: debug`)
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected error without subreddit name")
	}
}

func TestEnvOverridesSubreddit(t *testing.T) {
	reset()
	t.Setenv("SUBREDDIT_NAME", "fromenv")
	cfg, err := LoadFromFile("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SubredditName != "fromenv" {
		t.Errorf("SubredditName = %s", cfg.SubredditName)
	}
}

func TestLoadCachesConfig(t *testing.T) {
	reset()
	path := writeConfig(t, `
subreddit:
  name: pkmntcgtrades
`)
	first, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("same path should return the cached config")
	}
}
