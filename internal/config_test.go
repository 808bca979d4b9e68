package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/claimline/internal/claims"
	pkgconfig "github.com/starford/claimline/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Output.Suffix != "_timeline.html" {
		t.Errorf("suffix = %q", cfg.Output.Suffix)
	}
}

func TestInputConfig_Validation(t *testing.T) {
	cfg := InputConfig{Path: ""}
	if err := cfg.Validate(); err == nil {
		t.Error("empty input path should fail")
	}
	cfg = InputConfig{Path: "in", Exclude: []string{"**/drafts/**", "[bad"}}
	if err := cfg.Validate(); err == nil {
		t.Error("malformed exclude pattern should fail")
	}
	cfg.Exclude = cfg.Exclude[:1]
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid pattern rejected: %v", err)
	}
	if opts := cfg.ScanOptions(); len(opts.Exclude) != 1 || opts.Recursive {
		t.Errorf("scan options = %+v", opts)
	}
}

func TestCatalogConfig_PathRequiredWhenEnabled(t *testing.T) {
	if err := (&CatalogConfig{Enabled: true}).Validate(); err == nil {
		t.Error("enabled catalog without path should fail")
	}
	if err := (&CatalogConfig{Enabled: false}).Validate(); err != nil {
		t.Errorf("disabled catalog should pass: %v", err)
	}
}

func TestApplicationConfig_LogFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log format should fail")
	}
}

func TestRenderConfig_Validated(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Render.Theme = "neon"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown theme should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("CLAIMLINE_TEST_TOKEN", "s3cret")
	yaml := `
app:
  log_format: json
  http:
    port: 9090
input:
  path: ./claims
  recursive: true
  exclude: ["**/drafts/**"]
output:
  dir: ./out
claims:
  dateFormat: MM/DD/YYYY
  colors:
    rxTba: "#000000"
render:
  theme: dark
catalog:
  enabled: false
auth:
  mode: token
  token: ${CLAIMLINE_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogFormat != LogFormatJSON {
		t.Errorf("app = %+v", cfg.App)
	}
	if !cfg.Input.Recursive || cfg.Input.Path != "./claims" {
		t.Errorf("input = %+v", cfg.Input)
	}
	if cfg.Output.Suffix != "_timeline.html" {
		t.Errorf("default suffix lost: %q", cfg.Output.Suffix)
	}
	if cfg.Claims.DateFormat != "MM/DD/YYYY" || cfg.Claims.Colors[claims.SectionRxTBA] != "#000000" {
		t.Errorf("claims = %+v", cfg.Claims.Config)
	}
	if cfg.Claims.Colors[claims.SectionRxHistory] != "#3498db" {
		t.Error("unset colors should keep defaults")
	}
	if cfg.Render.Theme != "dark" || cfg.Render.Title != "Claims Timeline" {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
}

func TestClaimsConfig_Resolve(t *testing.T) {
	inline := ClaimsConfig{Config: claims.Config{DateFormat: "DD.MM.YYYY"}}
	got, err := inline.Resolve()
	if err != nil || got.DateFormat != "DD.MM.YYYY" {
		t.Fatalf("inline resolve = %+v, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "claims.json")
	if err := os.WriteFile(path, []byte(`{"rxTbaPath": "pending"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	fromFile := ClaimsConfig{ConfigFile: path, Config: claims.Config{RxTBAPath: "ignored"}}
	got, err = fromFile.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if got.RxTBAPath != "pending" {
		t.Errorf("file config should win: %q", got.RxTBAPath)
	}

	missing := ClaimsConfig{ConfigFile: filepath.Join(t.TempDir(), "nope.json")}
	if _, err := missing.Resolve(); err == nil {
		t.Error("missing claims config file should fail")
	}
}
