package flair

import (
	"context"
	"testing"
	"time"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
)

func TestParseCount(t *testing.T) {
	cases := []struct {
		text  string
		count int
		ok    bool
	}{
		{"Trades: 0", 0, true},
		{"Trades: 42", 42, true},
		{"Verified Seller | Trades: 120", 120, true},
		{"", 0, false},
		{"Resident Memelord", 0, false},
		{"Trades: many", 0, false},
	}
	for _, c := range cases {
		count, ok := ParseCount(c.text)
		if count != c.count || ok != c.ok {
			t.Errorf("ParseCount(%q) = (%d, %v), want (%d, %v)", c.text, count, ok, c.count, c.ok)
		}
	}
}

func TestTracked(t *testing.T) {
	if !Tracked("") {
		t.Errorf("empty flair is tracked")
	}
	if !Tracked("Trades: 7") {
		t.Errorf("counter flair is tracked")
	}
	if Tracked("Resident Memelord") {
		t.Errorf("custom flair must not be tracked")
	}
}

func TestParseRange(t *testing.T) {
	r, ok := ParseRange("Trades: 0-49")
	if !ok || r.Min != 0 || r.Max != 49 {
		t.Fatalf("ParseRange = (%+v, %v)", r, ok)
	}
	if _, ok := ParseRange("Trades: 7"); ok {
		t.Errorf("plain count text has no range")
	}
}

func TestFormatText(t *testing.T) {
	got := FormatText("Trades: 0-49", 7)
	if got != "Trades: 7" {
		t.Errorf("FormatText = %q", got)
	}
	got = FormatText("Power Seller | Trades: 50-99", 61)
	if got != "Power Seller | Trades: 61" {
		t.Errorf("FormatText = %q", got)
	}
	// No range: text passes through unchanged.
	if got := FormatText("custom", 3); got != "custom" {
		t.Errorf("FormatText = %q", got)
	}
}

func TestTemplateFor(t *testing.T) {
	platform := ports.NewMockPlatform()
	platform.FlairTemplates = []ports.FlairTemplate{
		{ID: "t1", Text: "Trades: 0-49"},
		{ID: "t2", Text: "Trades: 50-99"},
		{ID: "tm", Text: "Mod | Trades: 0-999", ModOnly: true},
		{ID: "junk", Text: "Verified"},
	}
	platform.Moderators = []string{"ModUser"}

	m := NewMetadata(platform, time.Minute)
	ctx := context.Background()

	tmpl, ok, err := m.TemplateFor(ctx, 7, "regular")
	if err != nil || !ok || tmpl.ID != "t1" {
		t.Fatalf("TemplateFor(7) = (%+v, %v, %v)", tmpl, ok, err)
	}

	tmpl, ok, err = m.TemplateFor(ctx, 61, "regular")
	if err != nil || !ok || tmpl.ID != "t2" {
		t.Fatalf("TemplateFor(61) = (%+v, %v, %v)", tmpl, ok, err)
	}

	// Moderators take the mod-only template, case-insensitively.
	tmpl, ok, err = m.TemplateFor(ctx, 7, "moduser")
	if err != nil || !ok || tmpl.ID != "tm" {
		t.Fatalf("TemplateFor(mod) = (%+v, %v, %v)", tmpl, ok, err)
	}

	// Out of every range.
	_, ok, err = m.TemplateFor(ctx, 150, "regular")
	if err != nil || ok {
		t.Fatalf("TemplateFor(150) ok=%v err=%v", ok, err)
	}

	// Second call hits the cache.
	if _, _, err := m.TemplateFor(ctx, 7, "regular"); err != nil {
		t.Fatal(err)
	}
	if n := platform.CallCount("ListFlairTemplates"); n != 1 {
		t.Errorf("expected 1 template fetch, got %d", n)
	}

	m.Reload()
	if _, _, err := m.TemplateFor(ctx, 7, "regular"); err != nil {
		t.Fatal(err)
	}
	if n := platform.CallCount("ListFlairTemplates"); n != 2 {
		t.Errorf("expected refetch after Reload, got %d calls", n)
	}
}
