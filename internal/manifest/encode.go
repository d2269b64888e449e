package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/renameio/v2"
	"github.com/magiconair/properties"
	"sigs.k8s.io/yaml"
)

// Output formats understood by Encode.
const (
	FormatProperties = "properties"
	FormatJSON       = "json"
	FormatYAML       = "yaml"
	FormatEnv        = "env"
)

// Formats lists every supported output format.
var Formats = []string{FormatProperties, FormatJSON, FormatYAML, FormatEnv}

// Encode serializes the placeholder set so a build script can consume it.
// Entries are always written in token order so the output is stable.
func Encode(p Placeholders, format string) ([]byte, error) {
	switch format {
	case FormatProperties, "":
		return encodeProperties(p)
	case FormatJSON:
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "marshal json")
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(map[string]string(p))
		if err != nil {
			return nil, errors.Wrap(err, "marshal yaml")
		}
		return data, nil
	case FormatEnv:
		return encodeEnv(p), nil
	default:
		return nil, errors.Newf("unknown output format %q", format)
	}
}

func encodeProperties(p Placeholders) ([]byte, error) {
	props := properties.NewProperties()
	props.DisableExpansion = true
	for _, t := range p.Tokens() {
		if _, _, err := props.Set(t, p[t]); err != nil {
			return nil, errors.Wrapf(err, "set %s", t)
		}
	}

	var buf bytes.Buffer
	if _, err := props.Write(&buf, properties.ISO_8859_1); err != nil {
		return nil, errors.Wrap(err, "write properties")
	}
	return buf.Bytes(), nil
}

func encodeEnv(p Placeholders) []byte {
	var buf bytes.Buffer
	for _, t := range p.Tokens() {
		fmt.Fprintf(&buf, "%s=%s\n", t, shellQuote(p[t]))
	}
	return buf.Bytes()
}

// shellQuote single-quotes v when it contains anything beyond a safe set.
func shellQuote(v string) string {
	if v == "" {
		return ""
	}
	safe := true
	for _, r := range v {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("_-./:@+,=", r)) {
			safe = false
			break
		}
	}
	if safe {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

// WriteFile writes data to path atomically, so a build never observes a
// partially written manifest or placeholder file.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return errors.WithStack(renameio.WriteFile(path, data, perm))
}
