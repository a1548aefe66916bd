package store

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/weightlog/internal/paths"
)

const testDir = "/data"

// item is a minimal collection record ordered newest first by At.
type item struct {
	ID    string    `json:"id"`
	At    time.Time `json:"at"`
	Value int       `json:"value"`
}

var itemKeys = Keys[item]{
	ID: func(i item) string { return i.ID },
	Less: func(a, b item) bool {
		if !a.At.Equal(b.At) {
			return a.At.After(b.At)
		}
		return a.ID < b.ID
	},
}

// note is a minimal singleton record.
type note struct {
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

func at(hour int) time.Time {
	return time.Date(2026, 4, 1, hour, 0, 0, 0, time.UTC)
}

// countingFs counts Open calls per path so tests can observe disk reads.
type countingFs struct {
	afero.Fs
	mu    sync.Mutex
	opens map[string]int
}

func newCountingFs(base afero.Fs) *countingFs {
	return &countingFs{Fs: base, opens: make(map[string]int)}
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.Fs.Open(name)
}

func (c *countingFs) reads(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[name]
}

// flakyFs fails renames or removals of store files on demand.
type flakyFs struct {
	afero.Fs
	failRename atomic.Bool
	failRemove atomic.Bool
}

var errDiskFull = errors.New("no space left on device")

func (f *flakyFs) Rename(oldname, newname string) error {
	if f.failRename.Load() {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: errDiskFull}
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *flakyFs) Remove(name string) error {
	if f.failRemove.Load() {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Remove(name)
}

type fixture struct {
	fs      afero.Fs
	opts    Options
	metrics *Metrics
}

func newFixture(t *testing.T, fs afero.Fs) *fixture {
	t.Helper()
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	m := NewMetrics(prometheus.NewRegistry())
	return &fixture{
		fs:      fs,
		metrics: m,
		opts: Options{
			Resolver: paths.NewDirResolver(testDir, fs),
			Fs:       fs,
			Metrics:  m,
		},
	}
}

func (f *fixture) items(name string) *Collection[item] {
	return NewCollection(name, itemKeys, f.opts)
}

func (f *fixture) broadcasts(name string) float64 {
	return testutil.ToFloat64(f.metrics.broadcasts.WithLabelValues(name))
}

func (f *fixture) loads(name string) float64 {
	return testutil.ToFloat64(f.metrics.loads.WithLabelValues(name))
}

func (f *fixture) subscribers(name string) float64 {
	return testutil.ToFloat64(f.metrics.subscribers.WithLabelValues(name))
}

func (f *fixture) readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := afero.ReadFile(f.fs, testDir+"/"+name)
	require.NoError(t, err)
	return string(data)
}

func recv[S any](t *testing.T, sub *Subscription[S]) S {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		require.True(t, ok, "subscription closed unexpectedly")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero S
	return zero
}

func requireQuiet[S any](t *testing.T, sub *Subscription[S]) {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		if ok {
			t.Fatalf("unexpected snapshot: %+v", v)
		}
		t.Fatal("subscription closed unexpectedly")
	case <-time.After(50 * time.Millisecond):
	}
}

func requireClosed[S any](t *testing.T, sub *Subscription[S]) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel was not closed")
		}
	}
}

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
