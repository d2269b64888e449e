package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	buildErrors "github.com/brizzbuzz/buildsecrets/internal/errors"
)

func TestLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "buildsecrets-tests-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "buildsecrets.toml")
	configData := `
root = "app"

[[sources]]
kind = "env"
prefix = "ORG_GRADLE_PROJECT_"

[[sources]]
kind = "dotenv"
path = ".env"

[[placeholders]]
token = "MAPS_KEY"
key = "GMAPS_API_KEY"
default = "unset"

[manifest]
template = "android/app/src/main/AndroidManifest.xml.in"
output = "build/AndroidManifest.xml"
application_id = "com.example.olx_clone"

[output]
format = "json"
`

	if err := os.WriteFile(configPath, []byte(configData), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Root != "app" {
		t.Errorf("Expected root app, got %s", cfg.Root)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(cfg.Sources))
	}
	if cfg.Sources[0].Kind != KindEnv || cfg.Sources[0].Path != "" {
		t.Errorf("Expected env source without path, got %+v", cfg.Sources[0])
	}
	if cfg.Sources[1].Path != ".env" {
		t.Errorf("Expected .env source, got %+v", cfg.Sources[1])
	}
	if len(cfg.Placeholders) != 1 {
		t.Fatalf("Expected 1 placeholder, got %d", len(cfg.Placeholders))
	}
	if got := cfg.Placeholders[0].SourceKey(); got != "GMAPS_API_KEY" {
		t.Errorf("Expected source key GMAPS_API_KEY, got %s", got)
	}
	if cfg.Placeholders[0].Default != "unset" {
		t.Errorf("Expected default unset, got %q", cfg.Placeholders[0].Default)
	}
	if cfg.Manifest.ApplicationID != "com.example.olx_clone" {
		t.Errorf("Expected application id, got %q", cfg.Manifest.ApplicationID)
	}
	if cfg.Manifest.Mode != "0644" {
		t.Errorf("Expected default manifest mode 0644, got %q", cfg.Manifest.Mode)
	}
	if cfg.Output.Path != "" {
		t.Errorf("Expected no placeholder output when a manifest template is set, got %q", cfg.Output.Path)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Expected json format, got %q", cfg.Output.Format)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing config, got error: %v", err)
	}

	if len(cfg.Sources) != 2 {
		t.Fatalf("Expected 2 default sources, got %d", len(cfg.Sources))
	}
	if cfg.Sources[0].Path != "android/local.properties" || cfg.Sources[1].Path != ".env" {
		t.Errorf("Unexpected default source order: %+v", cfg.Sources)
	}
	if cfg.Placeholders[0].Token != "GMAPS_API_KEY" {
		t.Errorf("Expected GMAPS_API_KEY placeholder, got %+v", cfg.Placeholders)
	}
	if cfg.Output.Path == "" {
		t.Error("Expected a default placeholder output path")
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("sources = ["))
	if err == nil {
		t.Fatal("Expected error for malformed TOML")
	}

	var buildErr *buildErrors.BuildError
	if !buildErrors.As(err, &buildErr) {
		t.Fatalf("Expected *BuildError, got %T", err)
	}
	if buildErr.Component != "configuration" {
		t.Errorf("Expected component 'configuration', got %q", buildErr.Component)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte("[output\npath = 1"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected error for malformed config file")
	}

	var buildErr *buildErrors.BuildError
	if !buildErrors.As(err, &buildErr) {
		t.Fatalf("Expected *BuildError, got %T", err)
	}
	if buildErr.Operation != "Loading configuration" {
		t.Errorf("Expected operation 'Loading configuration', got %q", buildErr.Operation)
	}
	if len(buildErr.Suggestions) == 0 || !strings.Contains(buildErr.Suggestions[0], path) {
		t.Errorf("Expected first suggestion to name %s, got %v", path, buildErr.Suggestions)
	}
}

func TestParseWrongType(t *testing.T) {
	_, err := Parse([]byte("[onepassword]\nenable = [1, 2]\n"))
	if err == nil {
		t.Fatal("Expected error for mistyped field")
	}
	if !strings.Contains(err.Error(), "Decoding configuration failed in configuration") {
		t.Errorf("Expected structured decoding error, got: %v", err)
	}
}

func TestAbsAndInputFiles(t *testing.T) {
	cfg := Default()
	cfg.Root = "/proj"
	cfg.Manifest.Template = "AndroidManifest.xml.in"
	cfg.Sources = append(cfg.Sources, Source{Kind: KindEnv}, Source{Kind: KindDotenv, Path: "/abs/.env"})

	want := []string{
		"/proj/android/local.properties",
		"/proj/.env",
		"/abs/.env",
		"/proj/AndroidManifest.xml.in",
	}
	got := cfg.InputFiles()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("InputFiles()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if cfg.Abs("") != "" {
		t.Error("Expected empty path to stay empty")
	}
}
