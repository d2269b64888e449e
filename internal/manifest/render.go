package manifest

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

// MissingError reports template tokens that have no placeholder value.
type MissingError struct {
	Tokens []string
}

func (e *MissingError) Error() string {
	quoted := make([]string, len(e.Tokens))
	for i, t := range e.Tokens {
		quoted[i] = "${" + t + "}"
	}
	return "no value for placeholder(s) " + strings.Join(quoted, ", ")
}

// Render substitutes every ${TOKEN} in tmpl with its placeholder value.
// Values are XML-escaped. Tokens without a value produce a *MissingError
// listing all of them; nothing is rendered in that case.
func Render(tmpl []byte, p Placeholders) ([]byte, error) {
	missing := make(map[string]struct{})
	out := tokenPattern.ReplaceAllFunc(tmpl, func(match []byte) []byte {
		token := string(tokenPattern.FindSubmatch(match)[1])
		v, ok := p.Get(token)
		if !ok {
			missing[token] = struct{}{}
			return match
		}
		var buf bytes.Buffer
		_ = xml.EscapeText(&buf, []byte(v))
		return buf.Bytes()
	})

	if len(missing) > 0 {
		err := &MissingError{}
		for t := range missing {
			err.Tokens = append(err.Tokens, t)
		}
		sort.Strings(err.Tokens)
		return nil, err
	}
	return out, nil
}

// Referenced returns the distinct tokens used by tmpl, sorted.
func Referenced(tmpl []byte) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, m := range tokenPattern.FindAllSubmatch(tmpl, -1) {
		t := string(m[1])
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}
