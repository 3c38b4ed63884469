package sources

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countradooku/libretto"
)

// stubUpstream serves one fixed package and counts calls.
type stubUpstream struct {
	data  libretto.PackageData
	calls atomic.Uint64
}

func (s *stubUpstream) FetchPackage(ctx context.Context, name libretto.PackageName) (libretto.PackageData, error) {
	s.calls.Add(1)
	if name != s.data.Name {
		return libretto.PackageData{}, errors.Errorf("unknown package %s", name)
	}
	return s.data, nil
}

func stubData(t *testing.T) libretto.PackageData {
	t.Helper()
	pj := packageJSON{
		Name: "acme/lib",
		Versions: []versionJSON{
			{Version: "1.0.0"},
			{Version: "1.2.0", Require: map[string]string{"acme/base": "^1.0"}},
		},
	}
	data, err := toPackageData("acme/lib", pj)
	require.NoError(t, err)
	return data
}

func TestBoltCacheHitAndMiss(t *testing.T) {
	dir := t.TempDir()
	up := &stubUpstream{data: stubData(t)}

	c, err := NewBoltCache(dir, up, 0, nil)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()

	got, err := c.FetchPackage(ctx, "acme/lib")
	require.NoError(t, err)
	assert.Len(t, got.Versions, 2)
	assert.EqualValues(t, 1, up.calls.Load())

	// Second fetch answers from the cache.
	got, err = c.FetchPackage(ctx, "acme/lib")
	require.NoError(t, err)
	assert.Len(t, got.Versions, 2)
	assert.EqualValues(t, 1, up.calls.Load())

	// Failures pass through and are not cached.
	_, err = c.FetchPackage(ctx, "acme/missing")
	require.Error(t, err)
	_, err = c.FetchPackage(ctx, "acme/missing")
	require.Error(t, err)
	assert.EqualValues(t, 3, up.calls.Load())
}

func TestBoltCachePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	up := &stubUpstream{data: stubData(t)}

	c, err := NewBoltCache(dir, up, 0, nil)
	require.NoError(t, err)
	_, err = c.FetchPackage(context.Background(), "acme/lib")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = NewBoltCache(dir, up, 0, nil)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.FetchPackage(context.Background(), "acme/lib")
	require.NoError(t, err)
	assert.Len(t, got.Versions, 2)
	assert.EqualValues(t, 1, up.calls.Load())
}

func TestBoltCacheEpochInvalidates(t *testing.T) {
	dir := t.TempDir()
	up := &stubUpstream{data: stubData(t)}

	c, err := NewBoltCache(dir, up, 0, nil)
	require.NoError(t, err)
	_, err = c.FetchPackage(context.Background(), "acme/lib")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// An epoch after the write makes the entry stale.
	c, err = NewBoltCache(dir, up, time.Now().Unix()+3600, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.FetchPackage(context.Background(), "acme/lib")
	require.NoError(t, err)
	assert.EqualValues(t, 2, up.calls.Load())
}

func TestBoltCacheSingleProcess(t *testing.T) {
	dir := t.TempDir()
	up := &stubUpstream{data: stubData(t)}

	c, err := NewBoltCache(dir, up, 0, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = NewBoltCache(dir, up, 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use")
}

func TestBoltCacheRequiresUpstream(t *testing.T) {
	_, err := NewBoltCache(t.TempDir(), nil, 0, nil)
	assert.Error(t, err)
}
