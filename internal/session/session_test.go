package session_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
	"github.com/KaramelBytes/co2lens-cli/internal/session"
)

func TestCreateSaveAndReload(t *testing.T) {
	root := t.TempDir()
	s, err := session.Create(root, "baseline", "/data/owid.csv")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID == "" {
		t.Fatalf("expected generated id")
	}
	if err := s.SetPreference("focus_country", "Brazil"); err != nil {
		t.Fatalf("set focus: %v", err)
	}
	if err := s.SetPreference("emission_target", "5000"); err != nil {
		t.Fatalf("set target: %v", err)
	}
	s.SetFilter(dataset.Filter{Entities: []string{"Brazil"}, FromPeriod: 2000})
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := session.Open(root, "baseline")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.ID != s.ID || got.DataFile != "/data/owid.csv" || got.RootDir() != filepath.Join(root, "baseline") {
		t.Fatalf("reloaded = %#v", got)
	}
	if got.Preferences["focus_entity"] != "Brazil" || got.Preferences["emission_target"] != "5000" {
		t.Fatalf("preferences = %#v", got.Preferences)
	}
	p := got.Prefs()
	if p.FocusEntity != "Brazil" || p.EmissionTarget == nil || *p.EmissionTarget != 5000 {
		t.Fatalf("parsed prefs = %#v", p)
	}
	if got.Filter.FromPeriod != 2000 || len(got.Filter.Entities) != 1 {
		t.Fatalf("filter = %#v", got.Filter)
	}

	if err := got.SetPreference("emission_target", ""); err != nil {
		t.Fatalf("clear target: %v", err)
	}
	if _, ok := got.Preferences["emission_target"]; ok {
		t.Fatalf("target should be cleared")
	}
}

func TestCreateRefusesExisting(t *testing.T) {
	root := t.TempDir()
	if _, err := session.Create(root, "dup", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := session.Create(root, "dup", ""); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already-exists error, got %v", err)
	}
}

func TestInvalidInputs(t *testing.T) {
	root := t.TempDir()
	if _, err := session.Create(root, "../escape", ""); err == nil {
		t.Fatalf("expected invalid name error")
	}
	s, err := session.Create(root, "ok", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetPreference("favourite_colour", "green"); err == nil {
		t.Fatalf("expected unknown preference error")
	}
	if err := s.SetPreference("emission_target", "-1"); err == nil {
		t.Fatalf("expected negative target error")
	}
	if len(s.Preferences) != 0 {
		t.Fatalf("failed updates must not change preferences: %#v", s.Preferences)
	}
}

func TestListAndFindByID(t *testing.T) {
	root := t.TempDir()
	b, _ := session.Create(root, "beta", "")
	if _, err := session.Create(root, "alpha", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "not-a-session"), 0o755); err != nil {
		t.Fatal(err)
	}
	all, err := session.List(root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Name != "alpha" || all[1].Name != "beta" {
		t.Fatalf("list = %v", all)
	}
	found, err := session.FindByID(root, b.ID)
	if err != nil || found.Name != "beta" {
		t.Fatalf("find = %v, %v", found, err)
	}
	if _, err := session.FindByID(root, "missing"); err == nil {
		t.Fatalf("expected not found")
	}
	none, err := session.List(filepath.Join(root, "absent"))
	if err != nil || len(none) != 0 {
		t.Fatalf("absent root = %v, %v", none, err)
	}
}

func TestRemoveDeletesSessionDir(t *testing.T) {
	root := t.TempDir()
	s, err := session.Create(root, "gone", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(s.RootDir(), "reports"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(s.RootDir()); !os.IsNotExist(err) {
		t.Fatalf("session dir still present: %v", err)
	}
	if err := s.Remove(); err == nil {
		t.Fatalf("expected error removing twice")
	}
}

func TestDiscoverFromNestedDir(t *testing.T) {
	root := t.TempDir()
	s, err := session.Create(root, "nested", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	deep := filepath.Join(s.RootDir(), "reports", "2024")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := session.Discover(deep)
	if err != nil || got == nil || got.ID != s.ID {
		t.Fatalf("discover = %v, %v", got, err)
	}
	none, err := session.Discover(root)
	if err != nil || none != nil {
		t.Fatalf("expected no session above root, got %v, %v", none, err)
	}
}
