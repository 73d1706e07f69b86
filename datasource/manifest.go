// Package datasource loads the data tables of parameterized test methods.
//
// A manifest file, in YAML or TOML, declares which "Class.method" takes its
// rows from which delimited file. File paths are relative to the manifest.
//
//	tables:
//	  - method: LoginTest.login
//	    file: data/login.csv
//	    delimiter: ","
//	disabled:
//	  - LoginTest.legacyLogin
package datasource

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const defaultDelimiter = ","

// TableSource declares the data file of one test method
type TableSource struct {
	Method    string `yaml:"method" toml:"method"`
	File      string `yaml:"file" toml:"file"`
	Delimiter string `yaml:"delimiter,omitempty" toml:"delimiter"`
}

// Manifest lists the data sources of a test plan
type Manifest struct {
	Tables   []TableSource `yaml:"tables" toml:"tables"`
	Disabled []string      `yaml:"disabled,omitempty" toml:"disabled"`

	// dir is the directory relative file paths are resolved against
	dir string
}

// LoadManifest reads a manifest. The format is chosen by file extension:
// .toml for TOML, anything else is read as YAML.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
			return nil, errors.Wrap(err, "failed to parse TOML manifest")
		}
	default:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, errors.Wrap(err, "failed to parse YAML manifest")
		}
	}

	m.dir = filepath.Dir(path)
	if err := m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid manifest %s", path)
	}
	return &m, nil
}

// Validate checks that every table names a method and a file, that methods
// are not declared twice and that delimiters are single characters
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Tables))
	for i, t := range m.Tables {
		if _, _, ok := SplitMethodKey(t.Method); !ok {
			return errors.Errorf("table %d: method %q is not of the form Class.method", i, t.Method)
		}
		if t.File == "" {
			return errors.Errorf("table %d (%s): file is required", i, t.Method)
		}
		if seen[t.Method] {
			return errors.Errorf("table %d: method %s declared twice", i, t.Method)
		}
		seen[t.Method] = true
		if t.Delimiter != "" && utf8.RuneCountInString(t.Delimiter) != 1 {
			return errors.Errorf("table %d (%s): delimiter must be a single character, got %q", i, t.Method, t.Delimiter)
		}
	}
	return nil
}

// path resolves the file of a table against the manifest directory
func (m *Manifest) path(t TableSource) string {
	if filepath.IsAbs(t.File) {
		return t.File
	}
	return filepath.Join(m.dir, t.File)
}

// SplitMethodKey splits "Class.method" at the last dot. Classes may contain
// dots, as Go import paths do.
func SplitMethodKey(key string) (class string, method string, ok bool) {
	i := strings.LastIndex(key, ".")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

func (t TableSource) delimiter() rune {
	d := t.Delimiter
	if d == "" {
		d = defaultDelimiter
	}
	r, _ := utf8.DecodeRuneInString(d)
	return r
}
