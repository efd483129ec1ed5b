// Package hashing implements the three canonical hash functions that tie
// object identity, source bytes, and payload content together across
// independent clients: identityHash, sourceHash, and contentHash.
//
// Every hash is computed over a canonical JSON encoding: object keys sorted
// lexicographically at every depth, no insignificant whitespace, numbers
// emitted without trailing zeros. Any divergence in these rules silently
// forks object identity across processes, so the encoder lives here alone
// and every hash function routes through it.
package hashing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalJSON renders v as a canonical JSON document: map keys sorted at
// every depth, no whitespace, and deterministic number formatting. v must be
// built from maps, slices, strings, numbers, bools, and nil (the shapes
// produced by json.Unmarshal into interface{}, or hand-built equivalents).
func CanonicalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case map[string]interface{}:
		return encodeObject(buf, val)
	case []interface{}:
		return encodeArray(buf, val)
	case string:
		return encodeString(buf, val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return encodeNumber(buf, val)
	case json.Number:
		buf.WriteString(val.String())
		return nil
	default:
		// Fall back to the standard marshaler, then re-decode into the
		// canonical shapes above so structs and typed maps still sort.
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("canonical json: marshal %T: %w", v, err)
		}
		var generic interface{}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&generic); err != nil {
			return fmt.Errorf("canonical json: redecode %T: %w", v, err)
		}
		return encodeCanonical(buf, generic)
	}
}

func encodeObject(buf *bytes.Buffer, obj map[string]interface{}) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encodeCanonical(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeArray(buf *bytes.Buffer, arr []interface{}) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeCanonical(buf, elem); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("canonical json: marshal string: %w", err)
	}
	buf.Write(raw)
	return nil
}

func encodeNumber(buf *bytes.Buffer, v interface{}) error {
	// json.Marshal writes integers without a fractional part and floats in
	// their shortest round-trippable form, so no trailing ".0" or
	// insignificant trailing zeros appear.
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("canonical json: marshal number: %w", err)
	}
	buf.Write(raw)
	return nil
}

// Normalize converts an arbitrary Go value (struct, map, slice, ...) into
// the map[string]interface{} / []interface{} shapes CanonicalJSON expects,
// by round-tripping it through the standard encoder/decoder with
// UseNumber so integers stay integers.
func Normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: marshal: %w", err)
	}
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("normalize: decode: %w", err)
	}
	return generic, nil
}
