package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/weightlog/internal/paths"
	"github.com/mesh-intelligence/weightlog/pkg/types"
)

func TestCollectionFreshStoreIsEmpty(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")

	got, err := c.FetchAll()
	require.NoError(t, err)
	assert.Empty(t, got)

	sub, err := c.Observe(context.Background())
	require.NoError(t, err)
	defer sub.Cancel()
	assert.Empty(t, recv(t, sub))

	exists, err := afero.Exists(f.fs, testDir+"/items.json")
	require.NoError(t, err)
	assert.False(t, exists, "reading must not create the backing file")
}

func TestCollectionUpsertDeleteScenario(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")

	sub, err := c.Observe(context.Background())
	require.NoError(t, err)
	defer sub.Cancel()
	assert.Empty(t, recv(t, sub))

	a := item{ID: "a", At: at(1), Value: 1}
	b := item{ID: "b", At: at(2), Value: 2}
	a2 := item{ID: "a", At: at(3), Value: 10}

	require.NoError(t, c.Upsert(a))
	require.NoError(t, c.Upsert(b))
	require.NoError(t, c.Upsert(a2))

	got, err := c.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, []item{a2, b}, got)

	assert.Equal(t, []item{a}, recv(t, sub))
	assert.Equal(t, []item{b, a}, recv(t, sub))
	assert.Equal(t, []item{a2, b}, recv(t, sub))
	assert.Equal(t, 3.0, f.broadcasts("items.json"))

	// Deleting an existing record broadcasts once.
	require.NoError(t, c.Delete("a"))
	got, err = c.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, []item{b}, got)
	assert.Equal(t, []item{b}, recv(t, sub))
	assert.Equal(t, 4.0, f.broadcasts("items.json"))

	// Deleting it again changes nothing.
	before := f.readFile(t, "items.json")
	require.NoError(t, c.Delete("a"))
	requireQuiet(t, sub)
	assert.Equal(t, 4.0, f.broadcasts("items.json"))
	assert.Equal(t, before, f.readFile(t, "items.json"))
	got, err = c.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, []item{b}, got)
}

func TestCollectionUpsertReplacesInPlace(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Upsert(item{ID: fmt.Sprintf("id-%d", i), At: at(i)}))
	}
	before, err := c.FetchAll()
	require.NoError(t, err)

	require.NoError(t, c.Upsert(item{ID: "id-2", At: at(2), Value: 99}))

	after, err := c.FetchAll()
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	got, ok, err := c.Get("id-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 99, got.Value)

	_, ok, err = c.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCollectionIdenticalUpsertIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")

	a := item{ID: "a", At: at(1), Value: 1}
	require.NoError(t, c.Upsert(a))

	sub, err := c.Observe(context.Background())
	require.NoError(t, err)
	defer sub.Cancel()
	recv(t, sub)

	require.NoError(t, c.Upsert(a))
	requireQuiet(t, sub)
	assert.Equal(t, 1.0, f.broadcasts("items.json"))
}

func TestCollectionLoadsExistingFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"empty file", "", []string{}},
		{"whitespace only", " \n\t\n", []string{}},
		{"empty array", "[]", []string{}},
		{"null", "null", []string{}},
		{
			name:    "unsorted records are sorted on load",
			content: `[{"id":"old","at":"2026-04-01T01:00:00Z","value":1},{"id":"new","at":"2026-04-01T05:00:00Z","value":2}]`,
			want:    []string{"new", "old"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			require.NoError(t, afero.WriteFile(f.fs, testDir+"/items.json", []byte(tt.content), 0o600))

			got, err := f.items("items.json").FetchAll()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestCollectionCorruptFileSurfacesPersistenceError(t *testing.T) {
	f := newFixture(t, nil)
	corrupt := `[{"id":"a","at":`
	require.NoError(t, afero.WriteFile(f.fs, testDir+"/items.json", []byte(corrupt), 0o600))
	c := f.items("items.json")

	_, err := c.FetchAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPersistence)
	var pe *types.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, types.OpDecode, pe.Op)
	assert.Equal(t, testDir+"/items.json", pe.Path)

	_, err = c.Observe(context.Background())
	assert.ErrorIs(t, err, types.ErrPersistence)

	// Mutations must not silently replace the corrupt data.
	err = c.Upsert(item{ID: "b", At: at(1)})
	assert.ErrorIs(t, err, types.ErrPersistence)
	err = c.Delete("a")
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.Equal(t, corrupt, f.readFile(t, "items.json"))
	assert.Equal(t, 0.0, f.loads("items.json"))
}

func TestCollectionLoadsOnce(t *testing.T) {
	fs := newCountingFs(afero.NewMemMapFs())
	require.NoError(t, afero.WriteFile(fs, testDir+"/items.json",
		[]byte(`[{"id":"a","at":"2026-04-01T01:00:00Z","value":1}]`), 0o600))
	f := newFixture(t, fs)
	c := f.items("items.json")

	for i := 0; i < 3; i++ {
		got, err := c.FetchAll()
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
	for i := 0; i < 2; i++ {
		sub, err := c.Observe(context.Background())
		require.NoError(t, err)
		assert.Len(t, recv(t, sub), 1)
		sub.Cancel()
	}
	_, _, err := c.Get("a")
	require.NoError(t, err)
	require.NoError(t, c.Upsert(item{ID: "b", At: at(2)}))
	_, err = c.FetchAll()
	require.NoError(t, err)

	assert.Equal(t, 1, fs.reads(testDir+"/items.json"))
	assert.Equal(t, 1.0, f.loads("items.json"))
}

func TestCollectionFailedPersistLeavesStateUntouched(t *testing.T) {
	fs := &flakyFs{Fs: afero.NewMemMapFs()}
	f := newFixture(t, fs)
	c := f.items("items.json")

	a := item{ID: "a", At: at(1)}
	require.NoError(t, c.Upsert(a))
	before := f.readFile(t, "items.json")

	sub, err := c.Observe(context.Background())
	require.NoError(t, err)
	defer sub.Cancel()
	assert.Equal(t, []item{a}, recv(t, sub))

	fs.failRename.Store(true)
	err = c.Upsert(item{ID: "b", At: at(2)})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)
	var pe *types.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, types.OpWrite, pe.Op)

	err = c.Delete("a")
	assert.ErrorIs(t, err, types.ErrPersistence)

	got, err := c.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, []item{a}, got)
	assert.Equal(t, before, f.readFile(t, "items.json"))
	requireQuiet(t, sub)

	// No temp files are left behind.
	entries, err := afero.ReadDir(fs, testDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "items.json", entries[0].Name())

	fs.failRename.Store(false)
	c2 := item{ID: "c", At: at(3)}
	require.NoError(t, c.Upsert(c2))
	assert.Equal(t, []item{c2, a}, recv(t, sub))
}

func TestCollectionSubscriberIsolation(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")

	first, err := c.Observe(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recv(t, first))

	a := item{ID: "a", At: at(1)}
	require.NoError(t, c.Upsert(a))

	second, err := c.Observe(context.Background())
	require.NoError(t, err)
	defer second.Cancel()
	assert.Equal(t, []item{a}, recv(t, second), "late subscriber starts from current state")
	assert.Equal(t, []item{a}, recv(t, first))
	assert.Equal(t, 2.0, f.subscribers("items.json"))

	first.Cancel()
	first.Cancel()
	requireClosed(t, first)
	assert.Equal(t, 1.0, f.subscribers("items.json"))

	b := item{ID: "b", At: at(2)}
	require.NoError(t, c.Upsert(b))
	assert.Equal(t, []item{b, a}, recv(t, second))
}

func TestCollectionSnapshotsAreCopies(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")
	require.NoError(t, c.Upsert(item{ID: "a", At: at(1), Value: 1}))

	first, err := c.Observe(context.Background())
	require.NoError(t, err)
	defer first.Cancel()
	second, err := c.Observe(context.Background())
	require.NoError(t, err)
	defer second.Cancel()

	snap := recv(t, first)
	snap[0].Value = 42
	assert.Equal(t, 1, recv(t, second)[0].Value)

	fetched, err := c.FetchAll()
	require.NoError(t, err)
	fetched[0].Value = 7
	again, err := c.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, 1, again[0].Value)
}

func TestCollectionObserveEndsWithContext(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := c.Observe(ctx)
	require.NoError(t, err)
	recv(t, sub)

	cancel()
	requireClosed(t, sub)
	assert.Eventually(t, func() bool { return f.subscribers("items.json") == 0 }, time.Second, 5*time.Millisecond)

	// The store keeps working for other callers.
	require.NoError(t, c.Upsert(item{ID: "a", At: at(1)}))
}

func TestCollectionSlowSubscriberMissesNothing(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")

	sub, err := c.Observe(context.Background())
	require.NoError(t, err)
	defer sub.Cancel()

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, c.Upsert(item{ID: fmt.Sprintf("id-%02d", i), At: at(0).Add(time.Duration(i) * time.Minute)}))
	}

	assert.Empty(t, recv(t, sub))
	for i := 1; i <= n; i++ {
		assert.Len(t, recv(t, sub), i)
	}
}

func TestCollectionOrderingStableForAllPermutations(t *testing.T) {
	records := []item{
		{ID: "d", At: at(1)},
		{ID: "b", At: at(4)},
		{ID: "a", At: at(2)},
		{ID: "c", At: at(2)},
	}
	want := []string{"b", "a", "c", "d"}

	for _, perm := range permutations(len(records)) {
		f := newFixture(t, nil)
		c := f.items("items.json")
		for _, i := range perm {
			require.NoError(t, c.Upsert(records[i]))
			got, err := c.FetchAll()
			require.NoError(t, err)
			for j := 1; j < len(got); j++ {
				assert.False(t, itemKeys.Less(got[j], got[j-1]), "perm %v: out of order", perm)
			}
		}
		got, err := c.FetchAll()
		require.NoError(t, err)
		assert.Equal(t, want, ids(got), "perm %v", perm)

		reloaded, err := f.items("items.json").FetchAll()
		require.NoError(t, err)
		assert.Equal(t, want, ids(reloaded), "perm %v: persisted order", perm)
	}
}

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := make([]int, 0, n)
			q = append(q, p[:i]...)
			q = append(q, n-1)
			q = append(q, p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func TestCollectionConcurrentUpsertsLoseNothing(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Upsert(item{ID: fmt.Sprintf("id-%02d", i), At: at(0).Add(time.Duration(i) * time.Second)}))
		}(i)
	}
	wg.Wait()

	got, err := c.FetchAll()
	require.NoError(t, err)
	assert.Len(t, got, n)

	reloaded, err := f.items("items.json").FetchAll()
	require.NoError(t, err)
	assert.Len(t, reloaded, n)
}

func TestCollectionDirectoryUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		resolver paths.Resolver
	}{
		{"no resolver", nil},
		{"empty directory", paths.NewDirResolver("", afero.NewMemMapFs())},
		{"read-only filesystem", paths.NewDirResolver("/data", afero.NewReadOnlyFs(afero.NewMemMapFs()))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollection("items.json", itemKeys, Options{Resolver: tt.resolver, Fs: afero.NewMemMapFs()})
			_, err := c.FetchAll()
			assert.ErrorIs(t, err, types.ErrDirectoryUnavailable)
			_, err = c.Observe(context.Background())
			assert.ErrorIs(t, err, types.ErrDirectoryUnavailable)
			assert.ErrorIs(t, c.Upsert(item{ID: "a", At: at(1)}), types.ErrDirectoryUnavailable)
		})
	}
}

func TestCollectionExportMatchesFile(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")

	data, err := c.Export()
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	require.NoError(t, c.Upsert(item{ID: "a", At: at(1), Value: 3}))
	data, err = c.Export()
	require.NoError(t, err)
	assert.Equal(t, f.readFile(t, "items.json"), string(data))
	assert.Equal(t, "[\n  {\n    \"at\": \"2026-04-01T01:00:00Z\",\n    \"id\": \"a\",\n    \"value\": 3\n  }\n]\n", string(data))
}

func TestCollectionExportIsCanonicalAfterLoad(t *testing.T) {
	f := newFixture(t, nil)
	raw := `[{"value":3, "id":"a","at":"2026-04-01T01:00:00Z"}]`
	require.NoError(t, afero.WriteFile(f.fs, testDir+"/items.json", []byte(raw), 0o600))
	c := f.items("items.json")

	data, err := c.Export()
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"at\": \"2026-04-01T01:00:00Z\",\n    \"id\": \"a\",\n    \"value\": 3\n  }\n]\n", string(data))
	assert.Equal(t, raw, f.readFile(t, "items.json"), "loading does not rewrite the file")

	// The first write brings the file in line with Export.
	require.NoError(t, c.Upsert(item{ID: "b", At: at(2)}))
	data, err = c.Export()
	require.NoError(t, err)
	assert.Equal(t, f.readFile(t, "items.json"), string(data))
}

func TestCollectionDeleteLastRecordWritesEmptyArray(t *testing.T) {
	f := newFixture(t, nil)
	c := f.items("items.json")

	require.NoError(t, c.Upsert(item{ID: "a", At: at(1)}))
	require.NoError(t, c.Delete("a"))
	assert.Equal(t, "[]\n", f.readFile(t, "items.json"))

	got, err := f.items("items.json").FetchAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollectionsAreIndependent(t *testing.T) {
	f := newFixture(t, nil)
	first := f.items("first.json")
	second := f.items("second.json")

	sub, err := second.Observe(context.Background())
	require.NoError(t, err)
	defer sub.Cancel()
	recv(t, sub)

	require.NoError(t, first.Upsert(item{ID: "a", At: at(1)}))
	requireQuiet(t, sub)

	got, err := second.FetchAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}
