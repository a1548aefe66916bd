// Package codec provides the single JSON encoding shared by every store.
//
// Encodings are canonical: object keys are sorted, numbers keep their
// original literal, HTML characters are not escaped, output is indented with
// two spaces and ends in a newline. Time values use RFC 3339 with nanosecond
// precision, the encoding/json default for time.Time. Two encodings of equal
// values are byte-identical.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const indent = "  "

// Codec encodes and decodes store files.
type Codec struct{}

// Default is the codec used by all stores unless a test overrides it.
var Default = &Codec{}

// Marshal returns the canonical encoding of v.
func (c *Codec) Marshal(v any) ([]byte, error) {
	raw, err := encode(v, "")
	if err != nil {
		return nil, err
	}

	// Round-trip through generic values so struct fields come out in sorted
	// key order like map keys do.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalizing: %w", err)
	}
	return encode(generic, indent)
}

// Unmarshal decodes a single JSON value from data into v. Trailing data after
// the value is an error.
func (c *Codec) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func encode(v any, ind string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if ind != "" {
		enc.SetIndent("", ind)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
