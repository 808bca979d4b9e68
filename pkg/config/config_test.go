package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Level string `yaml:"level"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("CFG_TEST_NAME", "claims")
	t.Setenv("CFG_TEST_EMPTY", "")
	path := writeConfig(t, "name: ${CFG_TEST_NAME}\nport: ${CFG_TEST_PORT:-8081}\nlevel: ${CFG_TEST_EMPTY:-info}\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "claims" || s.Port != 8081 || s.Level != "info" {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, `{"name": "j", "port": 1}`)
	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "j" {
		t.Errorf("name = %q", s.Name)
	}
}

func TestLoad_Errors(t *testing.T) {
	var s sample
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &s); err == nil {
		t.Error("missing file should fail")
	}
	if err := Load(writeConfig(t, "port: [1"), &s); err == nil {
		t.Error("malformed YAML should fail")
	}
	err := Load(writeConfig(t, "port: 0"), &s)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("validation error expected, got %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	s := sample{Port: 80}
	loaded, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &s)
	if err != nil || loaded {
		t.Fatalf("missing file: loaded=%v err=%v", loaded, err)
	}
	if s.Port != 80 {
		t.Errorf("defaults changed: %+v", s)
	}

	loaded, err = LoadOptional(writeConfig(t, "name: x"), &s)
	if err != nil || !loaded {
		t.Fatalf("present file: loaded=%v err=%v", loaded, err)
	}
	if s.Name != "x" || s.Port != 80 {
		t.Errorf("got %+v", s)
	}

	bad := sample{}
	if _, err := LoadOptional("", &bad); err == nil {
		t.Error("defaults are still validated")
	}
}
