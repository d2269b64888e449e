package errors

import (
	"fmt"
	"path/filepath"
	"strings"

	crdb "github.com/cockroachdb/errors"
)

// BuildError is a structured error carrying what failed, where, and how
// to fix it.
type BuildError struct {
	Operation   string   // What operation was being performed
	Component   string   // Which component failed (config, loader, manifest, ...)
	Issue       string   // The core issue description
	Context     string   // Additional context about the failure
	Suggestions []string // Actionable suggestions
	Cause       error    // Underlying error
}

func (e *BuildError) Error() string {
	var parts []string

	if e.Operation != "" && e.Component != "" {
		parts = append(parts, fmt.Sprintf("ERROR: %s failed in %s", e.Operation, e.Component))
	} else if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("ERROR: %s failed", e.Operation))
	} else {
		parts = append(parts, "ERROR: Operation failed")
	}

	if e.Issue != "" {
		parts = append(parts, fmt.Sprintf("  Issue: %s", e.Issue))
	}
	if e.Context != "" {
		parts = append(parts, fmt.Sprintf("  Context: %s", e.Context))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("  Cause: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		parts = append(parts, "")
		parts = append(parts, "  Suggestions:")
		for i, suggestion := range e.Suggestions {
			parts = append(parts, fmt.Sprintf("  %d. %s", i+1, suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

// ConfigError creates errors related to configuration parsing
func ConfigError(operation, issue string, cause error) *BuildError {
	return &BuildError{
		Operation: operation,
		Component: "configuration",
		Issue:     issue,
		Cause:     cause,
	}
}

// ConfigValidationError creates detailed validation errors with suggestions
func ConfigValidationError(field, value, issue string, suggestions []string) *BuildError {
	return &BuildError{
		Operation:   "Configuration validation",
		Component:   "configuration",
		Issue:       issue,
		Context:     fmt.Sprintf("Field '%s' has value '%s'", field, value),
		Suggestions: suggestions,
	}
}

// FileOperationError creates errors for file system operations
func FileOperationError(operation, path, issue string, cause error) *BuildError {
	suggestions := []string{}

	detail := issue
	if cause != nil {
		detail += " " + cause.Error()
	}

	if strings.Contains(detail, "permission denied") {
		suggestions = append(suggestions,
			fmt.Sprintf("Check that the build user can access '%s'", path),
			fmt.Sprintf("Check parent directory permissions: ls -la '%s'", filepath.Dir(path)),
		)
	} else if strings.Contains(detail, "no such file or directory") {
		suggestions = append(suggestions,
			fmt.Sprintf("Create parent directory: mkdir -p '%s'", filepath.Dir(path)),
			fmt.Sprintf("Verify the path is correct: '%s'", path),
		)
	} else if strings.Contains(detail, "disk") || strings.Contains(detail, "space") {
		suggestions = append(suggestions,
			"Check available disk space: df -h",
		)
	}

	return &BuildError{
		Operation:   operation,
		Component:   "file system",
		Issue:       issue,
		Context:     fmt.Sprintf("Target path: %s", path),
		Suggestions: suggestions,
		Cause:       cause,
	}
}

// SourceError creates errors for secret sources that exist but cannot be read.
// Missing sources are never errors and must not be reported through here.
func SourceError(path string, cause error) *BuildError {
	return &BuildError{
		Operation: "Reading secret source",
		Component: "loader",
		Issue:     "Source file exists but could not be read",
		Context:   fmt.Sprintf("Source: %s", path),
		Suggestions: []string{
			fmt.Sprintf("Check file permissions: ls -la '%s'", path),
			"Make sure the file is plain key=value text (ISO-8859-1 or UTF-8)",
			"Remove the file if it is not needed; missing sources resolve to empty values",
		},
		Cause: cause,
	}
}

// OnePasswordError creates errors for 1Password integration issues
func OnePasswordError(operation, issue string, cause error) *BuildError {
	suggestions := []string{}

	if strings.Contains(issue, "authentication") || strings.Contains(issue, "token") {
		suggestions = append(suggestions,
			"Verify your 1Password service account token is valid",
			"Set OP_SERVICE_ACCOUNT_TOKEN or run: buildsecrets token set",
		)
	} else if strings.Contains(issue, "not found") || strings.Contains(issue, "reference") {
		suggestions = append(suggestions,
			"Verify the 1Password reference format: op://Vault/Item/field",
			"Check if the vault, item, and field exist in 1Password",
			"Ensure the service account has access to the specified vault",
		)
	} else if strings.Contains(issue, "network") || strings.Contains(issue, "connection") {
		suggestions = append(suggestions,
			"Check internet connectivity",
			"Retry the build in a few minutes",
		)
	}

	return &BuildError{
		Operation:   operation,
		Component:   "1Password integration",
		Issue:       issue,
		Suggestions: suggestions,
		Cause:       cause,
	}
}

// ValidationError creates general validation errors
func ValidationError(operation, field, value, expectedFormat string) *BuildError {
	return &BuildError{
		Operation: operation,
		Component: "validation",
		Issue:     fmt.Sprintf("Invalid value '%s' for field '%s'", value, field),
		Context:   fmt.Sprintf("Expected format: %s", expectedFormat),
		Suggestions: []string{
			fmt.Sprintf("Update field '%s' to match the expected format", field),
		},
	}
}

// TokenError creates token-related errors with setup instructions
func TokenError(issue, tokenPath string, cause error) *BuildError {
	return &BuildError{
		Operation: "Token access",
		Component: "authentication",
		Issue:     issue,
		Context:   fmt.Sprintf("Token file: %s", tokenPath),
		Suggestions: []string{
			"Set OP_SERVICE_ACCOUNT_TOKEN in the build environment",
			fmt.Sprintf("Or store a token with: buildsecrets token set --path %s", tokenPath),
		},
		Cause: cause,
	}
}

// TemplateError creates errors for manifest template rendering
func TemplateError(operation, template string, missing []string, cause error) *BuildError {
	err := &BuildError{
		Operation: operation,
		Component: "manifest",
		Issue:     "Manifest template could not be rendered",
		Context:   fmt.Sprintf("Template: %s", template),
		Cause:     cause,
	}
	if len(missing) > 0 {
		err.Issue = fmt.Sprintf("No value provided for placeholder(s): %s", strings.Join(missing, ", "))
		for _, token := range missing {
			err.Suggestions = append(err.Suggestions,
				fmt.Sprintf("Add a [[placeholders]] entry with token = %q", token))
		}
	}
	return err
}

// Wrap wraps an existing error with build context
func Wrap(err error, operation, component string) error {
	if err == nil {
		return nil
	}

	return &BuildError{
		Operation: operation,
		Component: component,
		Issue:     err.Error(),
		Cause:     err,
	}
}

// WrapWithSuggestions wraps an error and adds suggestions
func WrapWithSuggestions(err error, operation, component string, suggestions []string) error {
	if err == nil {
		return nil
	}

	return &BuildError{
		Operation:   operation,
		Component:   component,
		Issue:       err.Error(),
		Suggestions: suggestions,
		Cause:       err,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return crdb.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return crdb.As(err, target) }
