// Package manifest holds the manifest placeholder set and substitutes it
// into Android manifest templates.
package manifest

import (
	"sort"
)

// ApplicationIDToken is the placeholder Android Gradle Plugin always
// provides.
const ApplicationIDToken = "applicationId"

// Placeholders maps placeholder token names to replacement strings.
type Placeholders map[string]string

func (p Placeholders) Set(token, value string) {
	p[token] = value
}

// Get returns the value for token and whether it is set.
func (p Placeholders) Get(token string) (string, bool) {
	v, ok := p[token]
	return v, ok
}

// Tokens returns the token names in sorted order.
func (p Placeholders) Tokens() []string {
	tokens := make([]string, 0, len(p))
	for t := range p {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// Merge copies every entry of other into p, overwriting existing tokens.
func (p Placeholders) Merge(other Placeholders) {
	for k, v := range other {
		p[k] = v
	}
}
