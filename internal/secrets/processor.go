package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/brizzbuzz/buildsecrets/internal/config"
	"github.com/brizzbuzz/buildsecrets/internal/errors"
	"github.com/brizzbuzz/buildsecrets/internal/loader"
	"github.com/brizzbuzz/buildsecrets/internal/manifest"
	"github.com/brizzbuzz/buildsecrets/internal/onepass"
	"github.com/brizzbuzz/buildsecrets/internal/stamp"
)

// SecretClient resolves 1Password secret references.
type SecretClient interface {
	ResolveSecret(ctx context.Context, reference string) (string, error)
}

// Processor runs one build pass: resolve placeholders, then write the
// placeholder file and render the manifest.
type Processor struct {
	client SecretClient
	log    zerolog.Logger
	env    func(string) (string, bool)
}

type Option func(*Processor)

func WithLogger(log zerolog.Logger) Option {
	return func(p *Processor) { p.log = log }
}

// WithEnv replaces os.LookupEnv for env sources.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(p *Processor) { p.env = lookup }
}

// NewProcessor creates a processor. client may be nil, in which case
// 1Password references are passed through unresolved.
func NewProcessor(client SecretClient, opts ...Option) *Processor {
	p := &Processor{
		client: client,
		log:    zerolog.Nop(),
		env:    os.LookupEnv,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result describes what a pass produced. Placeholder values are secrets
// and must not be logged.
type Result struct {
	Placeholders manifest.Placeholders
	Written      []string
	Unchanged    []string
}

// Resolve builds the placeholder set for cfg without writing anything.
func (p *Processor) Resolve(ctx context.Context, cfg *config.Config) (manifest.Placeholders, error) {
	l := loader.New(cfg, loader.WithLogger(p.log), loader.WithEnv(p.env))
	set, err := l.Placeholders(cfg.Placeholders)
	if err != nil {
		return nil, err
	}

	for _, token := range set.Tokens() {
		value := set[token]
		if !onepass.IsReference(value) {
			continue
		}
		if p.client == nil {
			p.log.Warn().Str("token", token).Msg("value is a 1Password reference but 1Password is not enabled; passing it through")
			continue
		}
		resolved, err := p.client.ResolveSecret(ctx, value)
		if err != nil {
			return nil, errors.OnePasswordError(
				fmt.Sprintf("Resolving placeholder %s", token),
				fmt.Sprintf("Failed to resolve 1Password reference: %s", value),
				err,
			)
		}
		p.log.Debug().Str("token", token).Msg("resolved 1Password reference")
		set.Set(token, resolved)
	}
	return set, nil
}

// Process resolves the placeholders and writes every configured output.
func (p *Processor) Process(ctx context.Context, cfg *config.Config) (*Result, error) {
	set, err := p.Resolve(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{Placeholders: set}

	var stamps *stamp.Store
	if cfg.StampFile != "" {
		stamps, err = stamp.Open(cfg.Abs(cfg.StampFile))
		if err != nil {
			return nil, err
		}
	}

	if cfg.Output.Path != "" {
		data, err := manifest.Encode(set, cfg.Output.Format)
		if err != nil {
			return nil, errors.ConfigError("Encoding placeholders", err.Error(), err)
		}
		if err := p.writeOutput(res, stamps, cfg.Abs(cfg.Output.Path), data, cfg.Output.Mode, "0600"); err != nil {
			return nil, err
		}
	}

	if cfg.Manifest.Template != "" {
		data, err := p.renderManifest(cfg, set)
		if err != nil {
			return nil, err
		}
		if err := p.writeOutput(res, stamps, cfg.Abs(cfg.Manifest.Output), data, cfg.Manifest.Mode, "0644"); err != nil {
			return nil, err
		}
	}

	if stamps != nil && len(res.Written) > 0 {
		if err := stamps.Save(); err != nil {
			return nil, err
		}
	}

	return res, nil
}

func (p *Processor) renderManifest(cfg *config.Config, set manifest.Placeholders) ([]byte, error) {
	templatePath := cfg.Abs(cfg.Manifest.Template)
	tmpl, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, errors.FileOperationError(
			"Reading manifest template",
			templatePath,
			"Failed to read manifest template",
			err,
		)
	}

	out, err := manifest.Render(tmpl, set)
	if err != nil {
		var missing *manifest.MissingError
		if errors.As(err, &missing) {
			return nil, errors.TemplateError("Rendering manifest", templatePath, missing.Tokens, err)
		}
		return nil, errors.TemplateError("Rendering manifest", templatePath, nil, err)
	}
	return out, nil
}

func (p *Processor) writeOutput(res *Result, stamps *stamp.Store, path string, data []byte, mode, defaultMode string) error {
	if stamps != nil {
		changed, err := stamps.Changed(path, data)
		if err != nil {
			return err
		}
		if !changed {
			p.log.Debug().Str("path", path).Msg("output unchanged")
			res.Unchanged = append(res.Unchanged, path)
			return nil
		}
	}

	if mode == "" {
		mode = defaultMode
	}
	fileMode, err := strconv.ParseUint(mode, 8, 32)
	if err != nil {
		return errors.ValidationError(
			fmt.Sprintf("Parsing file mode for %s", path),
			"mode",
			mode,
			"3-4 digit octal number (e.g., 0600, 0644)",
		)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.FileOperationError(
			"Creating output directory",
			filepath.Dir(path),
			"Failed to create output directory",
			err,
		)
	}

	if err := manifest.WriteFile(path, data, os.FileMode(fileMode)); err != nil {
		return errors.FileOperationError(
			"Writing output",
			path,
			"Failed to write output file",
			err,
		)
	}

	if stamps != nil {
		stamps.Record(path, data)
	}
	p.log.Info().Str("path", path).Msg("wrote output")
	res.Written = append(res.Written, path)
	return nil
}
