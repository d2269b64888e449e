// Package propfile reads flat key=value secret sources such as Gradle's
// local.properties or a project .env file.
//
// Files are parsed with Java properties syntax. Values are plain strings:
// no type coercion, no ${...} expansion, no trimming beyond what the
// properties format itself defines.
package propfile

import (
	"bytes"
	"io/fs"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/magiconair/properties"
)

// Encoding selects how the raw bytes of a source are decoded.
type Encoding = properties.Encoding

const (
	// Latin1 matches java.util.Properties.load(InputStream).
	Latin1 Encoding = properties.ISO_8859_1
	UTF8   Encoding = properties.UTF8
)

// Mapping is the in-memory key-value view of one source file.
type Mapping map[string]string

// Lookup returns the value for key and whether the key is defined.
// A key defined with an empty value is reported as present.
func (m Mapping) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys returns the defined keys in sorted order.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Parse decodes properties text into a Mapping.
func Parse(data []byte, enc Encoding) (Mapping, error) {
	l := &properties.Loader{
		Encoding:         enc,
		DisableExpansion: true,
	}
	p, err := l.LoadBytes(trimDanglingContinuation(data))
	if err != nil {
		return nil, errors.Wrap(err, "parse properties")
	}
	return Mapping(p.Map()), nil
}

// trimDanglingContinuation drops a line continuation that runs into the end
// of the input, e.g. a last line of `sdk.dir=C:\`. java.util.Properties
// ends the line there; the properties lexer would report premature EOF.
func trimDanglingContinuation(data []byte) []byte {
	tail := bytes.TrimRight(data, "\r\n")
	n := 0
	for i := len(tail) - 1; i >= 0 && tail[i] == '\\'; i-- {
		n++
	}
	if n%2 == 0 {
		return data
	}
	return tail[:len(tail)-1]
}

// Load reads and parses the file at path. A missing file is not an error:
// it yields an empty Mapping with exists == false. Any other failure to
// read or decode an existing file is returned.
func Load(path string, enc Encoding) (m Mapping, exists bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Mapping{}, false, nil
	} else if err != nil {
		return nil, false, errors.Wrapf(err, "read %s", path)
	}

	m, err = Parse(data, enc)
	if err != nil {
		return nil, true, errors.Wrapf(err, "load %s", path)
	}
	return m, true, nil
}
