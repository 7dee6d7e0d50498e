package document

import "time"

// Reader copies typed fields out of a document into entity fields.
// In partial mode, keys absent from the document leave the destination untouched.
// The first error is kept and later calls become no-ops.
type Reader struct {
	doc     Document
	partial bool
	err     error
}

// NewReader returns a Reader over doc.
func NewReader(doc Document, partial bool) *Reader {
	return &Reader{doc: doc, partial: partial}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

func (r *Reader) skip(key string) bool {
	return r.err != nil || (r.partial && !r.doc.Has(key))
}

func read[T any](r *Reader, key string, dst *T, get func(string) (T, error)) {
	if r.skip(key) {
		return
	}
	v, err := get(key)
	if err != nil {
		r.err = err
		return
	}
	*dst = v
}

// String reads key into dst.
func (r *Reader) String(key string, dst *string) {
	read(r, key, dst, r.doc.String)
}

// Int reads key into dst.
func (r *Reader) Int(key string, dst *int64) {
	read(r, key, dst, r.doc.Int)
}

// Bool reads key into dst.
func (r *Reader) Bool(key string, dst *bool) {
	read(r, key, dst, r.doc.Bool)
}

// Time reads key into dst.
func (r *Reader) Time(key string, dst *time.Time) {
	read(r, key, dst, r.doc.Time)
}

// Strings reads key into dst.
func (r *Reader) Strings(key string, dst *[]string) {
	read(r, key, dst, r.doc.Strings)
}

// Object reads key into dst.
func (r *Reader) Object(key string, dst *Document) {
	read(r, key, dst, r.doc.Object)
}

// Bytes reads key into dst.
func (r *Reader) Bytes(key string, dst *[]byte) {
	read(r, key, dst, r.doc.Bytes)
}
