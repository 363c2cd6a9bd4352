package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	// keep a stray .env in the package dir from leaking in
	wd, _ := os.Getwd()
	if err := os.Chdir(home); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range Keys {
		t.Setenv("CO2LENS_"+strings.ToUpper(k), "")
		os.Unsetenv("CO2LENS_" + strings.ToUpper(k))
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.LogLevel != "warn" || c.ServerAddr != "127.0.0.1:8080" {
		t.Fatalf("defaults: %#v", c)
	}
	if c.SessionsDir != filepath.Join(home, DirName, "sessions") {
		t.Fatalf("sessions dir = %s", c.SessionsDir)
	}
	if c.DBPath != filepath.Join(home, DirName, "events.db") {
		t.Fatalf("db path = %s", c.DBPath)
	}
	if len(c.CORSOrigins) != 1 || c.CORSOrigins[0] != "*" {
		t.Fatalf("cors = %v", c.CORSOrigins)
	}
	if c.MaxRows != 1000000 {
		t.Fatalf("max rows = %d", c.MaxRows)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	isolate(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for k, v := range map[string]string{
		"data_file":        "~/data/owid.csv",
		"log_level":        "DEBUG",
		"cors_origins":     "http://a.test, http://b.test",
		"emissions_column": "co2_mt",
		"max_rows":         "500",
	} {
		if err := c.Set(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := Save(c, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load("")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	home, _ := os.UserHomeDir()
	if got.DataFile != filepath.Join(home, "data", "owid.csv") {
		t.Fatalf("data file = %s", got.DataFile)
	}
	if got.LogLevel != "debug" || got.MaxRows != 500 || got.EmissionsColumn != "co2_mt" {
		t.Fatalf("reloaded = %#v", got)
	}
	if v, _ := got.Get("cors_origins"); v != "http://a.test,http://b.test" {
		t.Fatalf("cors = %q", v)
	}
	opt := got.DatasetOptions()
	if opt.MaxRows != 500 || opt.Columns.Emissions != "co2_mt" {
		t.Fatalf("options = %#v", opt)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.yaml")
	if err := os.WriteFile(path, []byte("server_addr: 0.0.0.0:9000\nlog_level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CO2LENS_LOG_LEVEL", "error")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ServerAddr != "0.0.0.0:9000" || c.LogLevel != "error" {
		t.Fatalf("got %#v", c)
	}
}

func TestDotEnvIsRead(t *testing.T) {
	home := isolate(t)
	if err := os.WriteFile(filepath.Join(home, ".env"), []byte("CO2LENS_ENTITY_COLUMN=organization\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("CO2LENS_ENTITY_COLUMN") })
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.EntityColumn != "organization" {
		t.Fatalf("entity column = %q", c.EntityColumn)
	}
}

func TestSetRejectsBadValues(t *testing.T) {
	c := &Global{}
	cases := map[string]string{
		"log_level": "loud",
		"max_rows":  "-3",
		"api_key":   "x",
	}
	for k, v := range cases {
		if err := c.Set(k, v); err == nil {
			t.Fatalf("expected error for %s=%s", k, v)
		}
	}
	if err := c.Set("delimiter", "tab"); err != nil {
		t.Fatal(err)
	}
	if c.DatasetOptions().Delimiter != '\t' {
		t.Fatalf("tab delimiter not mapped")
	}
}

func TestLoadMissingExplicitFileIsNotAnError(t *testing.T) {
	home := isolate(t)
	if _, err := Load(filepath.Join(home, "absent.yaml")); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "bad.yaml")
	if err := os.WriteFile(path, []byte("log_level: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
