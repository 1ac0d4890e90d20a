// Package dsconfig implements the Dedicated Server's own configuration
// files: the hand-rolled duplicate-key INI format used by
// AstroServerSettings.ini and Engine.ini, plus the typed config views the
// supervisor needs (DSConfig, EngineConfig, PlayerProperties).
//
// Grounded on original_source/astro/inimulticonfig.py (INIMultiConfig).
package dsconfig

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Value is either a single INI value or a list of them under the same key
// (the DS's PlayerProperties entries repeat the same key once per player).
type Value struct {
	single string
	list   []string
	isList bool
}

// SingleValue wraps one scalar value.
func SingleValue(v string) Value { return Value{single: v} }

// ListValue wraps a repeated-key value list.
func ListValue(vs []string) Value {
	if len(vs) == 1 {
		return Value{single: vs[0]}
	}
	return Value{list: vs, isList: true}
}

// IsList reports whether this value came from (or should be written as)
// more than one occurrence of its key.
func (v Value) IsList() bool { return v.isList }

// String returns the scalar form; for a list it returns the first element.
func (v Value) String() string {
	if v.isList {
		if len(v.list) == 0 {
			return ""
		}
		return v.list[0]
	}
	return v.single
}

// Strings returns all occurrences, scalar or not, as a slice.
func (v Value) Strings() []string {
	if v.isList {
		return v.list
	}
	return []string{v.single}
}

// Section is an ordered-insertion map of key to Value.
type Section struct {
	order []string
	data  map[string]Value
}

func newSection() *Section {
	return &Section{data: make(map[string]Value)}
}

// Get returns the value for key and whether it was present.
func (s *Section) Get(key string) (Value, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Set assigns key to a single scalar value, preserving first-seen order.
func (s *Section) Set(key, value string) {
	if _, ok := s.data[key]; !ok {
		s.order = append(s.order, key)
	}
	s.data[key] = SingleValue(value)
}

// SetList assigns key to a repeated-value list, preserving first-seen order.
func (s *Section) SetList(key string, values []string) {
	if _, ok := s.data[key]; !ok {
		s.order = append(s.order, key)
	}
	s.data[key] = ListValue(values)
}

// Keys returns the keys of this section in first-seen order.
func (s *Section) Keys() []string { return append([]string(nil), s.order...) }

// Doc is a parsed multi-section duplicate-key INI document.
type Doc struct {
	order    []string
	sections map[string]*Section
}

// NewDoc returns an empty document.
func NewDoc() *Doc {
	return &Doc{sections: make(map[string]*Section)}
}

// Section returns the named section, creating it (and registering it in
// write order) if it doesn't exist yet.
func (d *Doc) Section(name string) *Section {
	sec, ok := d.sections[name]
	if !ok {
		sec = newSection()
		d.sections[name] = sec
		d.order = append(d.order, name)
	}
	return sec
}

// HasSection reports whether name has been seen, without creating it.
func (d *Doc) HasSection(name string) bool {
	_, ok := d.sections[name]
	return ok
}

// boolStates mirrors INIMultiConfig.BOOLEAN_STATES: recognised tokens fold
// to canonical "True"/"False" on read, same as the Python parser does by
// mapping through a python bool before re-stringifying on write.
var boolStates = map[string]string{
	"yes": "True", "true": "True", "on": "True",
	"no": "False", "false": "False", "off": "False",
}

func foldBoolToken(v string) string {
	if canon, ok := boolStates[strings.ToLower(v)]; ok {
		return canon
	}
	return v
}

// decodeToUTF8 transcodes raw to UTF-8. A UTF-8 or UTF-16 BOM, if present,
// identifies the encoding outright; otherwise charset.DetermineEncoding
// scans the first 1024 bytes for an HTML-style charset declaration, keeps
// valid UTF-8 as UTF-8, and decodes anything else as windows-1252. No
// byte-frequency analysis is done.
func decodeToUTF8(raw []byte) ([]byte, error) {
	e, _, _ := charset.DetermineEncoding(raw, "")
	decoded, _, err := transform.Bytes(unicode.BOMOverride(e.NewDecoder()), raw)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

// ParseDoc reads a duplicate-key INI file. Lines outside any section
// header are ignored, mirroring the reference parser's "Global section is
// dropped" behaviour. Blank lines and malformed lines are skipped.
func ParseDoc(path string) (*Doc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := decodeToUTF8(raw)
	if err != nil {
		return nil, fmt.Errorf("dsconfig: detecting encoding of %s: %w", path, err)
	}

	doc := NewDoc()
	var current *Section

	sc := bufio.NewScanner(bytes.NewReader(decoded))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if len(line) >= 2 && line[0] == '[' && line[len(line)-1] == ']' {
			name := strings.TrimSpace(line[1 : len(line)-1])
			if name != "" {
				current = doc.Section(name)
			}
			continue
		}

		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		if current == nil {
			continue
		}

		key := strings.TrimSpace(line[:eq])
		val := foldBoolToken(strings.TrimSpace(line[eq+1:]))

		if existing, ok := current.Get(key); ok {
			current.SetList(key, append(existing.Strings(), val))
		} else {
			current.Set(key, val)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return doc, nil
}

// WriteFile serialises doc in declaration order: one "key=value" line per
// scalar, one line per element for a list value, a blank line after every
// section (including the last), matching INIMultiConfig.write_file.
func WriteFile(path string, doc *Doc) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, name := range doc.order {
		sec := doc.sections[name]
		fmt.Fprintf(w, "[%s]\n", name)

		for _, key := range sec.order {
			v := sec.data[key]
			if v.isList {
				for _, item := range v.list {
					fmt.Fprintf(w, "%s=%s\n", key, item)
				}
			} else {
				fmt.Fprintf(w, "%s=%s\n", key, v.single)
			}
		}
		fmt.Fprint(w, "\n")
	}

	return w.Flush()
}

// encodeFakeFloat mirrors encode_fakefloat: integers stored in fields that
// Unreal reads as floats must be written with a literal ".000000" suffix.
func encodeFakeFloat(n int) string {
	return strconv.Itoa(n) + ".000000"
}

// decodeFakeFloat parses a "NN.NNNNNN"-shaped token back to an int,
// rounding rather than truncating (mirrors decode_fakefloat's round()).
func decodeFakeFloat(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("dsconfig: invalid fake-float %q: %w", s, err)
	}
	if f >= 0 {
		return int(f + 0.5), nil
	}
	return int(f - 0.5), nil
}

func parseBool(s string) bool {
	switch s {
	case "True", "true", "1":
		return true
	default:
		return false
	}
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
