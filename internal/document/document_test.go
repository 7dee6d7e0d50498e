package document

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_KeepsNumbers(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"version": 3, "ratio": 1.5}`))
	require.NoError(t, err)

	assert.Equal(t, json.Number("3"), doc["version"])

	n, err := doc.Int("version")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = doc.Int("ratio")
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "ratio", typeErr.Field)
}

func TestDecode_Null(t *testing.T) {
	doc, err := Decode(strings.NewReader(`null`))
	require.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Empty(t, doc)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"a":`))
	require.Error(t, err)
}

func TestAccessors_TypeMismatch(t *testing.T) {
	doc := Document{
		"title":   42,
		"active":  "yes",
		"tags":    []any{"a", 1},
		"nested":  "flat",
		"data":    "%%%",
		"created": true,
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"string", func() error { _, err := doc.String("title"); return err }},
		{"bool", func() error { _, err := doc.Bool("active"); return err }},
		{"strings", func() error { _, err := doc.Strings("tags"); return err }},
		{"object", func() error { _, err := doc.Object("nested"); return err }},
		{"bytes", func() error { _, err := doc.Bytes("data"); return err }},
		{"time", func() error { _, err := doc.Time("created"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var typeErr *TypeError
			assert.ErrorAs(t, tt.call(), &typeErr)
		})
	}
}

func TestTime_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 9, 10, 11, 12, 345_000_000, time.UTC)
	doc := Document{"created": FormatTime(ts)}

	assert.Equal(t, "2024-03-09T10:11:12.345Z", doc["created"])

	got, err := doc.Time("created")
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

func TestTime_InvalidDate(t *testing.T) {
	doc := Document{"created": "yesterday"}

	_, err := doc.Time("created")
	var dateErr *DateError
	require.ErrorAs(t, err, &dateErr)
	assert.Equal(t, "created", dateErr.Field)

	var parseErr *time.ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestFormatTime_Zero(t *testing.T) {
	assert.Nil(t, FormatTime(time.Time{}))
}

func TestFormatTime_OrdersLexicographically(t *testing.T) {
	early := FormatTime(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)).(string)
	late := FormatTime(time.Date(2024, 1, 1, 10, 0, 0, 5_000_000, time.UTC)).(string)
	assert.Less(t, early, late)
}

func TestClone_IsDeep(t *testing.T) {
	orig := Document{"nested": map[string]any{"a": 1}, "tags": []string{"x"}}

	clone, err := orig.Clone()
	require.NoError(t, err)

	nested, err := clone.Object("nested")
	require.NoError(t, err)
	nested["a"] = 2

	assert.Equal(t, 1, orig["nested"].(map[string]any)["a"])
	assert.Equal(t, 2, clone["nested"].(map[string]any)["a"])
}

func TestBytes_Base64(t *testing.T) {
	doc := Document{"data": "aGVsbG8="}
	b, err := doc.Bytes("data")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)
}

func TestRequired(t *testing.T) {
	doc := Document{"emailAddress": "a@b.c", "password": nil}
	errs := Required(doc, "emailAddress", "password", "username")

	require.Len(t, errs, 2)
	assert.Equal(t, "password", errs[0].Field)
	assert.Equal(t, "username", errs[1].Field)
}

func TestNewValidationError(t *testing.T) {
	assert.NoError(t, NewValidationError(nil))

	err := NewValidationError([]FieldError{{Field: "username", Message: "too short"}})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), "username: too short")
}
