package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/brizzbuzz/buildsecrets/internal/config"
	"github.com/brizzbuzz/buildsecrets/internal/errors"
	"github.com/brizzbuzz/buildsecrets/internal/manifest"
	"github.com/brizzbuzz/buildsecrets/internal/onepass"
)

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	modePattern  = regexp.MustCompile(`^[0-7]{3,4}$`)
	appIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)
)

// Validator checks a configuration before any source is read.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig reports every problem in cfg at once. The returned error
// is a *multierror.Error wrapping one *errors.BuildError per problem.
func (v *Validator) ValidateConfig(cfg *config.Config) error {
	var result *multierror.Error

	if len(cfg.Sources) == 0 {
		result = multierror.Append(result, errors.ConfigError(
			"Configuration validation",
			"No sources defined in configuration",
			nil,
		))
	}
	for i, src := range cfg.Sources {
		if err := v.validateSource(src, fmt.Sprintf("sources[%d]", i)); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if len(cfg.Placeholders) == 0 {
		result = multierror.Append(result, errors.ConfigError(
			"Configuration validation",
			"No placeholders defined in configuration",
			nil,
		))
	}
	seenTokens := make(map[string]string)
	for i, b := range cfg.Placeholders {
		name := fmt.Sprintf("placeholders[%d]", i)
		if err := v.validateBinding(b, name, seenTokens, cfg.OnePassword.Enable); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if cfg.Output.Path == "" && cfg.Manifest.Output == "" {
		result = multierror.Append(result, errors.ConfigValidationError(
			"output.path",
			"<empty>",
			"Nothing to produce: neither output.path nor manifest.output is set",
			[]string{
				"Set output.path to write the placeholder set for Gradle",
				"Or set manifest.template and manifest.output to render a manifest",
			},
		))
	}

	seenPaths := make(map[string]string)
	if cfg.Output.Path != "" {
		if err := v.validateFormat(cfg.Output.Format); err != nil {
			result = multierror.Append(result, err)
		}
		if err := v.validateOutputPath(cfg.Output.Path, cfg.Abs(cfg.Output.Path), "output.path", seenPaths); err != nil {
			result = multierror.Append(result, err)
		}
		if err := v.validateMode(cfg.Output.Mode, "output"); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if cfg.Manifest.Template != "" || cfg.Manifest.Output != "" {
		if cfg.Manifest.Template == "" || cfg.Manifest.Output == "" {
			result = multierror.Append(result, errors.ConfigValidationError(
				"manifest",
				fmt.Sprintf("template=%q output=%q", cfg.Manifest.Template, cfg.Manifest.Output),
				"manifest.template and manifest.output must be set together",
				[]string{"Set both fields, or remove the [manifest] section"},
			))
		} else {
			if err := v.validateOutputPath(cfg.Manifest.Output, cfg.Abs(cfg.Manifest.Output), "manifest.output", seenPaths); err != nil {
				result = multierror.Append(result, err)
			}
			if cfg.Abs(cfg.Manifest.Template) == cfg.Abs(cfg.Manifest.Output) {
				result = multierror.Append(result, errors.ConfigValidationError(
					"manifest.output",
					cfg.Manifest.Output,
					"Manifest output would overwrite its own template",
					[]string{"Render to a separate file, e.g. build/AndroidManifest.xml"},
				))
			}
		}
		if err := v.validateMode(cfg.Manifest.Mode, "manifest"); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if id := cfg.Manifest.ApplicationID; id != "" && !appIDPattern.MatchString(id) {
		result = multierror.Append(result, errors.ValidationError(
			"Validating manifest.application_id",
			"application_id",
			id,
			"Java package name with at least two segments (e.g., com.example.olx_clone)",
		))
	}

	return result.ErrorOrNil()
}

// validateSource validates one source entry. Source paths may point
// outside the project root (a Gradle module reading ../../.env does).
func (v *Validator) validateSource(src config.Source, name string) error {
	switch src.Kind {
	case config.KindProperties, config.KindDotenv:
		if src.Path == "" {
			return errors.ConfigValidationError(
				fmt.Sprintf("%s.path", name),
				"<empty>",
				"File sources need a path",
				[]string{
					"Example: path = \"android/local.properties\"",
					"Example: path = \".env\"",
				},
			)
		}
		if src.Prefix != "" {
			return errors.ConfigValidationError(
				fmt.Sprintf("%s.prefix", name),
				src.Prefix,
				"prefix only applies to env sources",
				[]string{"Remove prefix or change kind to \"env\""},
			)
		}
	case config.KindEnv:
		if src.Path != "" {
			return errors.ConfigValidationError(
				fmt.Sprintf("%s.path", name),
				src.Path,
				"env sources read the process environment and take no path",
				[]string{"Remove path or change kind to \"properties\" or \"dotenv\""},
			)
		}
		if src.Prefix != "" && !identPattern.MatchString(src.Prefix) {
			return errors.ConfigValidationError(
				fmt.Sprintf("%s.prefix", name),
				src.Prefix,
				"Environment prefix must be a valid identifier",
				[]string{"Example: prefix = \"ORG_GRADLE_PROJECT_\""},
			)
		}
	default:
		return errors.ConfigValidationError(
			fmt.Sprintf("%s.kind", name),
			src.Kind,
			"Unknown source kind",
			[]string{
				fmt.Sprintf("Use one of: %s, %s, %s", config.KindProperties, config.KindDotenv, config.KindEnv),
			},
		)
	}
	return nil
}

// validateBinding validates token and key names and rejects duplicate tokens
func (v *Validator) validateBinding(b config.Binding, name string, seenTokens map[string]string, opEnabled bool) error {
	if !identPattern.MatchString(b.Token) {
		value := b.Token
		if value == "" {
			value = "<empty>"
		}
		return errors.ConfigValidationError(
			fmt.Sprintf("%s.token", name),
			value,
			"Placeholder token must be a valid identifier",
			[]string{
				"Use letters, digits, underscores and dots, starting with a letter or underscore",
				"Example: token = \"GMAPS_API_KEY\" for ${GMAPS_API_KEY} in the manifest",
			},
		)
	}

	if b.Key != "" && !identPattern.MatchString(b.Key) {
		return errors.ConfigValidationError(
			fmt.Sprintf("%s.key", name),
			b.Key,
			"Source key must be a valid identifier",
			[]string{"Leave key empty to look up the token name itself"},
		)
	}

	if existing, exists := seenTokens[b.Token]; exists {
		return errors.ConfigValidationError(
			fmt.Sprintf("%s.token", name),
			b.Token,
			fmt.Sprintf("Duplicate token (already used by %s)", existing),
			[]string{"Each placeholder token must be bound once"},
		)
	}
	seenTokens[b.Token] = name

	if opEnabled && onepass.IsReference(b.Default) {
		if err := v.validateReference(b.Default, name+".default"); err != nil {
			return err
		}
	}
	return nil
}

// validateReference validates 1Password reference format
func (v *Validator) validateReference(reference, field string) error {
	if !strings.HasPrefix(reference, onepass.ReferencePrefix) {
		return errors.ConfigValidationError(
			field,
			reference,
			"Invalid 1Password reference format",
			[]string{
				"Use format: op://Vault/Item/field or op://Vault/Item/Section/field",
				"Example: op://Mobile/Google Maps/credential",
			},
		)
	}

	parts := strings.Split(strings.TrimPrefix(reference, onepass.ReferencePrefix), "/")
	if len(parts) < 3 {
		return errors.ConfigValidationError(
			field,
			reference,
			"Reference must have at least 3 parts: vault/item/field",
			[]string{
				"Verify the reference format: op://Vault/Item/field",
				"Or with sections: op://Vault/Item/Section/field",
			},
		)
	}

	vault, item := parts[0], parts[1]
	fieldName := parts[len(parts)-1]

	if vault == "" {
		return errors.ConfigValidationError(field, reference, "Vault name cannot be empty",
			[]string{"List available vaults: op vault list"})
	}
	if item == "" {
		return errors.ConfigValidationError(field, reference, "Item name cannot be empty",
			[]string{fmt.Sprintf("List items in vault: op item list --vault '%s'", vault)})
	}
	if fieldName == "" {
		return errors.ConfigValidationError(field, reference, "Field name cannot be empty",
			[]string{
				fmt.Sprintf("View item details: op item get '%s' --vault '%s'", item, vault),
				"Common field names: credential, password, key",
			})
	}

	return nil
}

func (v *Validator) validateFormat(format string) error {
	for _, f := range manifest.Formats {
		if format == f {
			return nil
		}
	}
	return errors.ValidationError(
		"Validating output.format",
		"format",
		format,
		strings.Join(manifest.Formats, ", "),
	)
}

// validateOutputPath rejects traversal in the configured path, then system
// locations and duplicates in its resolved form abs.
func (v *Validator) validateOutputPath(path, abs, field string, seenPaths map[string]string) error {
	if escapesRoot(path) {
		return errors.ConfigValidationError(
			field,
			path,
			"Path traversal detected (contains '..')",
			[]string{
				"Remove '..' from the path",
				"Outputs belong under the project, e.g. build/",
			},
		)
	}

	if existing, exists := seenPaths[abs]; exists {
		return errors.ConfigValidationError(
			field,
			path,
			fmt.Sprintf("Duplicate output path (already used by %s)", existing),
			[]string{"Write the placeholder set and the manifest to different files"},
		)
	}
	seenPaths[abs] = field

	dangerousPaths := []string{
		"/bin", "/sbin", "/usr/bin", "/usr/sbin",
		"/boot", "/dev", "/proc", "/sys",
		"/etc/passwd", "/etc/shadow", "/etc/group",
	}
	for _, dangerous := range dangerousPaths {
		if abs == dangerous || strings.HasPrefix(abs, dangerous+string(filepath.Separator)) {
			return errors.ConfigValidationError(
				field,
				abs,
				fmt.Sprintf("Path starts with potentially dangerous location: %s", dangerous),
				[]string{"Write outputs under the project build directory"},
			)
		}
	}
	return nil
}

// escapesRoot reports whether the cleaned path still has a ".." element.
// Names that merely contain two dots, like app..properties, are fine.
func escapesRoot(path string) bool {
	for _, elem := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if elem == ".." {
			return true
		}
	}
	return false
}

// validateMode validates file permission mode
func (v *Validator) validateMode(mode, section string) error {
	if mode == "" {
		return nil
	}

	if !modePattern.MatchString(mode) {
		return errors.ValidationError(
			fmt.Sprintf("Validating %s.mode", section),
			"mode",
			mode,
			"3-4 digit octal number (e.g., 0600, 0644)",
		)
	}

	modeInt, err := strconv.ParseUint(mode, 8, 32)
	if err != nil {
		return errors.ValidationError(
			fmt.Sprintf("Validating %s.mode", section),
			"mode",
			mode,
			"valid octal number",
		)
	}

	// Outputs carry the secret in clear text.
	if modeInt&0002 != 0 {
		return errors.ConfigValidationError(
			fmt.Sprintf("%s.mode", section),
			mode,
			"Mode allows world write access",
			[]string{"Use 0600 for placeholder files and 0644 for manifests"},
		)
	}

	return nil
}

// ValidateTokenFile validates the token file exists and is non-empty
func (v *Validator) ValidateTokenFile(tokenPath string) error {
	content, err := os.ReadFile(tokenPath)
	if os.IsNotExist(err) {
		return errors.TokenError(
			fmt.Sprintf("Token file does not exist: %s", tokenPath),
			tokenPath,
			err,
		)
	} else if err != nil {
		return errors.TokenError(
			fmt.Sprintf("Cannot read token file: %s", err.Error()),
			tokenPath,
			err,
		)
	}

	if len(strings.TrimSpace(string(content))) == 0 {
		return errors.TokenError("Token file is empty", tokenPath, nil)
	}

	return nil
}
