package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vxgate/vxgate/internal/document"
)

// MemoryStore is an in-process Store used in development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string]map[string]document.Document
	uniques map[string][]string
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithUniqueIndex enforces uniqueness of field within collection,
// mirroring the unique indexes created by the SQL migrations.
func WithUniqueIndex(collection, field string) MemoryOption {
	return func(s *MemoryStore) {
		s.uniques[collection] = append(s.uniques[collection], field)
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		data:    make(map[string]map[string]document.Document),
		uniques: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, collection string, doc document.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored, err := doc.Without(document.IDField).Clone()
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	id := doc.ID()
	if id == "" {
		id = ulid.Make().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.data[collection]
	if docs == nil {
		docs = make(map[string]document.Document)
		s.data[collection] = docs
	}

	for _, field := range s.uniques[collection] {
		v, ok := stored[field]
		if !ok || v == nil {
			continue
		}
		for otherID, other := range docs {
			if otherID != id && equalValues(other[field], v) {
				return "", fmt.Errorf("%w: %s.%s", ErrDuplicate, collection, field)
			}
		}
	}

	docs[id] = stored
	return id, nil
}

// FindOne implements Store.
func (s *MemoryStore) FindOne(ctx context.Context, collection string, filter Filter) (document.Document, error) {
	docs, err := s.Find(ctx, collection, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// Find implements Store.
func (s *MemoryStore) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	for _, sf := range opts.Sort {
		if err := ValidateField(sf.Field); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	var matched []document.Document
	for id, doc := range s.data[collection] {
		full := doc.Without()
		full[document.IDField] = id
		if matches(full, filter) {
			matched = append(matched, full)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		for _, sf := range opts.Sort {
			c := compareValues(matched[i][sf.Field], matched[j][sf.Field])
			if c == 0 {
				continue
			}
			if sf.Desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i].ID() < matched[j].ID()
	})

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]document.Document, 0, len(matched))
	for _, doc := range matched {
		c, err := doc.Clone()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	docs, err := s.Find(ctx, collection, filter, FindOptions{})
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(ctx context.Context, collection string, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, doc := range s.data[collection] {
		full := doc.Without()
		full[document.IDField] = id
		if matches(full, filter) {
			delete(s.data[collection], id)
			n++
		}
	}
	return n, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func matches(doc document.Document, filter Filter) bool {
	for _, c := range filter {
		v, present := doc[c.Field]
		want := normalizeValue(c.Value)

		switch c.Op {
		case OpEq:
			if want == nil {
				if v != nil {
					return false
				}
				continue
			}
			if !present || !equalValues(v, want) {
				return false
			}
		case OpNe:
			if want == nil {
				if v == nil {
					return false
				}
				continue
			}
			if present && equalValues(v, want) {
				return false
			}
		case OpLt, OpLte, OpGt, OpGte:
			if v == nil || want == nil || kindRank(v) != kindRank(want) {
				return false
			}
			cmp := compareValues(v, want)
			ok := (c.Op == OpLt && cmp < 0) || (c.Op == OpLte && cmp <= 0) ||
				(c.Op == OpGt && cmp > 0) || (c.Op == OpGte && cmp >= 0)
			if !ok {
				return false
			}
		case OpIn:
			found := false
			for _, item := range c.Value.([]any) {
				if present && equalValues(v, normalizeValue(item)) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// normalizeValue maps filter values onto their stored representation.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return document.FormatTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return document.FormatTime(*t)
	default:
		return v
	}
}

// kindRank orders JSON kinds the way postgres orders jsonb values.
func kindRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 1
	case json.Number, float64, float32, int, int64, int32, uint, uint64:
		return 2
	case bool:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}

func compareValues(a, b any) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 0:
		return 0
	case 1:
		return strings.Compare(a.(string), b.(string))
	case 2:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 3:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	default:
		ja, _ := json.Marshal(a)
		jb, _ := json.Marshal(b)
		return bytes.Compare(ja, jb)
	}
}

func equalValues(a, b any) bool {
	return kindRank(a) == kindRank(b) && compareValues(a, b) == 0
}
