package config

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	buildErrors "github.com/brizzbuzz/buildsecrets/internal/errors"
)

// DefaultFile is the config file looked up in the project root.
const DefaultFile = "buildsecrets.toml"

// Source kinds.
const (
	KindProperties = "properties"
	KindDotenv     = "dotenv"
	KindEnv        = "env"
)

// Source is one place a secret may be defined. Sources are consulted in
// the order they appear in Config.Sources.
type Source struct {
	Kind   string `koanf:"kind"`
	Path   string `koanf:"path"`
	Prefix string `koanf:"prefix"`
}

// Binding maps a manifest placeholder token to a key in the sources.
type Binding struct {
	Token   string `koanf:"token"`
	Key     string `koanf:"key"`
	Default string `koanf:"default"`
}

// SourceKey returns the key looked up in the sources, which defaults to
// the token name.
func (b Binding) SourceKey() string {
	if b.Key != "" {
		return b.Key
	}
	return b.Token
}

type Manifest struct {
	Template      string `koanf:"template"`
	Output        string `koanf:"output"`
	Mode          string `koanf:"mode"`
	ApplicationID string `koanf:"application_id"`
}

type Output struct {
	Path   string `koanf:"path"`
	Format string `koanf:"format"`
	Mode   string `koanf:"mode"`
}

type OnePassword struct {
	Enable    bool   `koanf:"enable"`
	TokenFile string `koanf:"token_file"`
}

// Config is the complete configuration for one build invocation. It is
// passed explicitly down the pipeline; nothing reads it from globals.
type Config struct {
	Root         string      `koanf:"root"`
	Sources      []Source    `koanf:"sources"`
	Placeholders []Binding   `koanf:"placeholders"`
	Manifest     Manifest    `koanf:"manifest"`
	Output       Output      `koanf:"output"`
	OnePassword  OnePassword `koanf:"onepassword"`
	StampFile    string      `koanf:"stamp_file"`
}

// Default returns the configuration equivalent to the Gradle scripts of a
// Flutter Android app: GMAPS_API_KEY from android/local.properties, then
// from the project .env, exposed as the GMAPS_API_KEY manifest placeholder.
func Default() *Config {
	return &Config{
		Root: ".",
		Sources: []Source{
			{Kind: KindProperties, Path: "android/local.properties"},
			{Kind: KindDotenv, Path: ".env"},
		},
		Placeholders: []Binding{
			{Token: "GMAPS_API_KEY"},
		},
		Manifest: Manifest{
			Mode: "0644",
		},
		Output: Output{
			Path:   "build/manifest-placeholders.properties",
			Format: "properties",
			Mode:   "0600",
		},
		OnePassword: OnePassword{
			TokenFile: "/etc/buildsecrets-token",
		},
		StampFile: "build/.buildsecrets-stamps.json",
	}
}

var tomlParser = toml.Parser()

// Load reads the TOML config at path. Fields the file leaves unset take
// their values from Default; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	err := k.Load(file.Provider(path), tomlParser)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, buildErrors.WrapWithSuggestions(err, "Loading configuration", "configuration", []string{
			fmt.Sprintf("Check the TOML syntax of %s", path),
			"Remove the file to fall back to the built-in defaults",
		})
	}
	return unmarshal(k)
}

// Parse reads a TOML config from memory. Unset fields take their values
// from Default.
func Parse(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), tomlParser); err != nil {
		return nil, buildErrors.Wrap(err, "Parsing configuration", "configuration")
	}
	return unmarshal(k)
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{}
	err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"})
	if err != nil {
		return nil, buildErrors.WrapWithSuggestions(err, "Decoding configuration", "configuration", []string{
			"Check field types against buildsecrets.example.toml",
		})
	}
	cfg.applyDefaults(Default())
	return cfg, nil
}

// applyDefaults fills every field left unset by the config file. Lists are
// replaced as a whole, never merged element by element.
func (c *Config) applyDefaults(d *Config) {
	if c.Root == "" {
		c.Root = d.Root
	}
	if len(c.Sources) == 0 {
		c.Sources = d.Sources
	}
	if len(c.Placeholders) == 0 {
		c.Placeholders = d.Placeholders
	}
	if c.Manifest.Mode == "" {
		c.Manifest.Mode = d.Manifest.Mode
	}
	if c.Output.Path == "" && c.Manifest.Template == "" {
		c.Output.Path = d.Output.Path
	}
	if c.Output.Format == "" {
		c.Output.Format = d.Output.Format
	}
	if c.Output.Mode == "" {
		c.Output.Mode = d.Output.Mode
	}
	if c.OnePassword.TokenFile == "" {
		c.OnePassword.TokenFile = d.OnePassword.TokenFile
	}
	if c.StampFile == "" {
		c.StampFile = d.StampFile
	}
}

// Abs resolves p against the project root. Absolute paths are returned
// unchanged and an empty path stays empty.
func (c *Config) Abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// InputFiles lists every file whose contents affect the outputs: file
// sources and the manifest template, resolved against the root.
func (c *Config) InputFiles() []string {
	var files []string
	for _, s := range c.Sources {
		if s.Kind != KindEnv && s.Path != "" {
			files = append(files, c.Abs(s.Path))
		}
	}
	if c.Manifest.Template != "" {
		files = append(files, c.Abs(c.Manifest.Template))
	}
	return files
}
