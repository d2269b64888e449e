// Package loader resolves build-time secrets from optional key-value
// sources and registers them as manifest placeholders.
//
// Absence is never an error here. A missing source file and a missing key
// both mean "not defined"; the caller applies the default. Only an
// existing source that cannot be read fails the build.
package loader

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/brizzbuzz/buildsecrets/internal/config"
	"github.com/brizzbuzz/buildsecrets/internal/errors"
	"github.com/brizzbuzz/buildsecrets/internal/manifest"
	"github.com/brizzbuzz/buildsecrets/internal/propfile"
)

// Lookup reads the properties file at path and returns the value of key.
// ok is false when the file or the key is absent.
func Lookup(path, key string) (value string, ok bool, err error) {
	m, _, err := propfile.Load(path, propfile.Latin1)
	if err != nil {
		return "", false, errors.SourceError(path, err)
	}
	value, ok = m.Lookup(key)
	return value, ok, nil
}

// Resolve returns the value of key in the properties file at path, or ""
// when the file or the key is absent.
func Resolve(path, key string) (string, error) {
	value, ok, err := Lookup(path, key)
	if err != nil {
		return "", err
	}
	if !ok {
		// Missing file and missing key both degrade to the empty string.
		value = ""
	}
	return value, nil
}

// Loader looks keys up across an ordered list of sources. The first
// source that defines a key wins, even when the defined value is empty.
//
// A Loader belongs to one build invocation: each file source is read at
// most once and its mapping kept for later lookups.
type Loader struct {
	cfg    *config.Config
	log    zerolog.Logger
	env    func(string) (string, bool)
	parsed map[string]propfile.Mapping
}

type Option func(*Loader)

// WithLogger sets the logger. Values are never logged, only key names
// and source locations.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithEnv replaces os.LookupEnv for env sources.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(l *Loader) { l.env = lookup }
}

func New(cfg *config.Config, opts ...Option) *Loader {
	l := &Loader{
		cfg:    cfg,
		log:    zerolog.Nop(),
		env:    os.LookupEnv,
		parsed: make(map[string]propfile.Mapping),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lookup returns the value of key from the first source defining it,
// together with a description of that source.
func (l *Loader) Lookup(key string) (value, from string, ok bool, err error) {
	for _, src := range l.cfg.Sources {
		switch src.Kind {
		case config.KindEnv:
			name := src.Prefix + key
			if v, found := l.env(name); found {
				return v, "env:" + name, true, nil
			}
		default:
			path := l.cfg.Abs(src.Path)
			m, err := l.mapping(path, encodingFor(src.Kind))
			if err != nil {
				return "", "", false, err
			}
			if v, found := m.Lookup(key); found {
				return v, path, true, nil
			}
		}
	}
	return "", "", false, nil
}

// Placeholders resolves every binding into a manifest placeholder set.
// Undefined keys take the binding's default.
func (l *Loader) Placeholders(bindings []config.Binding) (manifest.Placeholders, error) {
	set := manifest.Placeholders{}
	for _, b := range bindings {
		key := b.SourceKey()
		value, from, ok, err := l.Lookup(key)
		if err != nil {
			return nil, err
		}
		if !ok {
			l.log.Debug().Str("key", key).Str("token", b.Token).Msg("key not defined in any source, using default")
			value = b.Default
		} else {
			l.log.Debug().Str("key", key).Str("token", b.Token).Str("source", from).Msg("resolved key")
		}
		set.Set(b.Token, value)
	}

	if id := l.cfg.Manifest.ApplicationID; id != "" {
		if _, exists := set.Get(manifest.ApplicationIDToken); !exists {
			set.Set(manifest.ApplicationIDToken, id)
		}
	}
	return set, nil
}

func (l *Loader) mapping(path string, enc propfile.Encoding) (propfile.Mapping, error) {
	if m, ok := l.parsed[path]; ok {
		return m, nil
	}

	m, exists, err := propfile.Load(path, enc)
	if err != nil {
		return nil, errors.SourceError(path, err)
	}
	if !exists {
		l.log.Debug().Str("source", path).Msg("source not found, treating as empty")
	}
	l.parsed[path] = m
	return m, nil
}

func encodingFor(kind string) propfile.Encoding {
	if kind == config.KindDotenv {
		return propfile.UTF8
	}
	return propfile.Latin1
}
