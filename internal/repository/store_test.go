package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vxgate/vxgate/internal/document"
)

type storeFactory func(t *testing.T) Store

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemory(t *testing.T) Store {
	return NewMemoryStore(
		WithUniqueIndex("client", "key"),
		WithUniqueIndex("user", "username"),
		WithUniqueIndex("user", "emailAddress"),
	)
}

func newSQLiteMemory(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLite(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStores(t *testing.T) {
	factories := map[string]storeFactory{
		"memory": newMemory,
		"sqlite": newSQLiteMemory,
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			runStoreContract(t, factory)
		})
	}
}

func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("save assigns id and find returns it", func(t *testing.T) {
		s := newStore(t)

		id, err := s.Save(ctx, "entity", document.Document{"title": "first", "version": 1})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := s.FindOne(ctx, "entity", ByID(id))
		require.NoError(t, err)
		assert.Equal(t, id, doc.ID())
		assert.Equal(t, "first", doc["title"])

		n, err := doc.Int("version")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("save with id replaces in place", func(t *testing.T) {
		s := newStore(t)

		id, err := s.Save(ctx, "entity", document.Document{"title": "v1", "body": "keep?"})
		require.NoError(t, err)

		again, err := s.Save(ctx, "entity", document.Document{document.IDField: id, "title": "v2"})
		require.NoError(t, err)
		assert.Equal(t, id, again)

		doc, err := s.FindOne(ctx, "entity", ByID(id))
		require.NoError(t, err)
		assert.Equal(t, "v2", doc["title"])
		assert.False(t, doc.Has("body"))

		n, err := s.Count(ctx, "entity", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("find one not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindOne(ctx, "entity", ByID("missing"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("collections are isolated", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Save(ctx, "a", document.Document{"x": "1"})
		require.NoError(t, err)

		docs, err := s.Find(ctx, "b", nil, FindOptions{})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("filters", func(t *testing.T) {
		s := newStore(t)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		ids := make([]string, 0, 4)
		for i, title := range []string{"alpha", "beta", "gamma", "delta"} {
			id, err := s.Save(ctx, "entity", document.Document{
				"title":     title,
				"version":   i,
				"validated": i%2 == 0,
				"created":   document.FormatTime(base.Add(time.Duration(i) * time.Hour)),
			})
			require.NoError(t, err)
			ids = append(ids, id)
		}

		tests := []struct {
			name   string
			filter Filter
			want   int
		}{
			{"eq string", Where(Eq("title", "beta")), 1},
			{"eq number", Where(Eq("version", 2)), 1},
			{"eq bool", Where(Eq("validated", true)), 2},
			{"ne", Where(Ne("title", "beta")), 3},
			{"gt number", Where(Gt("version", 1)), 2},
			{"lte number", Where(Lte("version", 1)), 2},
			{"lt time", Where(Lt("created", base.Add(2*time.Hour))), 2},
			{"gte time", Where(Gte("created", base.Add(2*time.Hour))), 2},
			{"in titles", Where(In("title", []string{"alpha", "delta", "zeta"})), 2},
			{"in ids", Where(In(document.IDField, ids[:3])), 3},
			{"empty in", Where(In("title", []string{})), 0},
			{"missing field is null", Where(Eq("author", nil)), 4},
			{"conjunction", Where(Gt("version", 0), Eq("validated", true)), 1},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				n, err := s.Count(ctx, "entity", tt.filter)
				require.NoError(t, err)
				assert.Equal(t, int64(tt.want), n)
			})
		}
	})

	t.Run("sort limit skip", func(t *testing.T) {
		s := newStore(t)
		for i, title := range []string{"c", "a", "d", "b", "e"} {
			_, err := s.Save(ctx, "entity", document.Document{"title": title, "version": i % 2})
			require.NoError(t, err)
		}

		docs, err := s.Find(ctx, "entity", nil, FindOptions{Sort: []SortField{{Field: "title"}}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, titles(docs))

		docs, err = s.Find(ctx, "entity", nil, FindOptions{Sort: []SortField{{Field: "title", Desc: true}}, Limit: 2, Skip: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "c"}, titles(docs))

		docs, err = s.Find(ctx, "entity", nil, FindOptions{Sort: []SortField{{Field: "title"}}, Skip: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "e"}, titles(docs))

		docs, err = s.Find(ctx, "entity", nil, FindOptions{
			Sort: []SortField{{Field: "version", Desc: true}, {Field: "title"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, titles(docs))
	})

	t.Run("remove", func(t *testing.T) {
		s := newStore(t)
		for _, v := range []int{1, 2, 3} {
			_, err := s.Save(ctx, "entity", document.Document{"version": v})
			require.NoError(t, err)
		}

		n, err := s.Remove(ctx, "entity", Where(Gte("version", 2)))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.Remove(ctx, "entity", ByID("missing"))
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		left, err := s.Count(ctx, "entity", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), left)
	})

	t.Run("unique index", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Save(ctx, "client", document.Document{"key": "abc"})
		require.NoError(t, err)

		_, err = s.Save(ctx, "client", document.Document{"key": "abc"})
		assert.ErrorIs(t, err, ErrDuplicate)

		// Re-saving the owner of the value is not a conflict.
		_, err = s.Save(ctx, "client", document.Document{document.IDField: id, "key": "abc", "calls": 1})
		assert.NoError(t, err)
	})

	t.Run("invalid field names", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Find(ctx, "entity", Where(Eq("title'; DROP TABLE documents; --", 1)), FindOptions{})
		assert.ErrorIs(t, err, ErrInvalidField)

		_, err = s.Find(ctx, "entity", nil, FindOptions{Sort: []SortField{{Field: "a.b"}}})
		assert.ErrorIs(t, err, ErrInvalidField)
	})

	t.Run("nested values survive", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Save(ctx, "entity", document.Document{
			"nested": map[string]any{"depth": map[string]any{"n": 2}},
			"tags":   []string{"x", "y"},
		})
		require.NoError(t, err)

		doc, err := s.FindOne(ctx, "entity", ByID(id))
		require.NoError(t, err)

		tags, err := doc.Strings("tags")
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, tags)

		nested, err := doc.Object("nested")
		require.NoError(t, err)
		depth, err := document.Document(nested).Object("depth")
		require.NoError(t, err)
		n, err := depth.Int("n")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Find(cctx, "entity", nil, FindOptions{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func titles(docs []document.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		s, _ := d.String("title")
		out = append(out, s)
	}
	return out
}
