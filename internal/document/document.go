// Package document provides the untyped structured record exchanged with the
// document store, together with typed accessors used by entity mappers.
package document

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// IDField is the name of the store-assigned identifier inside a document.
const IDField = "_id"

// TimeLayout is the fixed-width UTC layout used for stored timestamps.
// Fixed width keeps lexicographic and chronological order identical.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Document is an untyped, nested key-value record.
type Document map[string]any

// FormatTime renders t in TimeLayout. The zero time renders as nil.
func FormatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(TimeLayout)
}

// Decode reads a single JSON object from r. Numbers are kept as json.Number.
func Decode(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Unmarshal parses raw JSON into a Document.
func Unmarshal(data []byte) (Document, error) {
	return Decode(bytes.NewReader(data))
}

// Clone returns a deep copy with values normalized to their JSON form,
// so every store hands back the same Go types for the same data.
func (d Document) Clone() (Document, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return Unmarshal(raw)
}

// Has reports whether key is present, even with a null value.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Without returns a shallow copy with the given keys removed.
func (d Document) Without(keys ...string) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// ID returns the document identifier, or "" when unset.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// String returns the string at key. Missing and null values yield "".
func (d Document) String(key string) (string, error) {
	switch v := d[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", &TypeError{Field: key, Want: "string", Got: v}
	}
}

// Int returns the integer at key. Missing and null values yield 0.
func (d Document) Int(key string) (int64, error) {
	switch v := d[key].(type) {
	case nil:
		return 0, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, &TypeError{Field: key, Want: "integer", Got: v}
		}
		return int64(f), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, &TypeError{Field: key, Want: "integer", Got: v}
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	default:
		return 0, &TypeError{Field: key, Want: "integer", Got: v}
	}
}

// Bool returns the boolean at key. Missing and null values yield false.
func (d Document) Bool(key string) (bool, error) {
	switch v := d[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, &TypeError{Field: key, Want: "boolean", Got: v}
	}
}

// Time returns the timestamp at key. Missing and null values yield the zero time.
func (d Document) Time(key string) (time.Time, error) {
	switch v := d[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, &DateError{Field: key, Value: v, Err: err}
		}
		return t.UTC(), nil
	default:
		return time.Time{}, &TypeError{Field: key, Want: "timestamp string", Got: v}
	}
}

// Strings returns the string array at key.
func (d Document) Strings(key string) ([]string, error) {
	switch v := d[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &TypeError{Field: key, Want: "array of strings", Got: item}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &TypeError{Field: key, Want: "array of strings", Got: v}
	}
}

// Object returns the nested document at key.
func (d Document) Object(key string) (Document, error) {
	switch v := d[key].(type) {
	case nil:
		return nil, nil
	case Document:
		return v, nil
	case map[string]any:
		return Document(v), nil
	default:
		return nil, &TypeError{Field: key, Want: "object", Got: v}
	}
}

// Bytes returns the binary payload at key, stored as standard base64.
func (d Document) Bytes(key string) ([]byte, error) {
	switch v := d[key].(type) {
	case nil:
		return nil, nil
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, &TypeError{Field: key, Want: "base64 string", Got: v}
		}
		return b, nil
	default:
		return nil, &TypeError{Field: key, Want: "base64 string", Got: v}
	}
}

// TypeError reports a field holding a value of the wrong JSON type.
type TypeError struct {
	Field string
	Want  string
	Got   any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("field %q: expected %s, got %s", e.Field, e.Want, jsonKind(e.Got))
}

// DateError reports a timestamp field that could not be parsed.
type DateError struct {
	Field string
	Value string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("field %q: invalid timestamp %q", e.Field, e.Value)
}

func (e *DateError) Unwrap() error { return e.Err }

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64, int32:
		return "number"
	case []any:
		return "array"
	case map[string]any, Document:
		return "object"
	default:
		return strconv.Quote(fmt.Sprintf("%T", v))
	}
}
