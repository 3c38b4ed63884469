package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libMetadata = `{
	"name": "acme/lib",
	"versions": [
		{"version": "1.0.0"},
		{"version": "1.2.0", "require": {"acme/base": "^1.0"}}
	]
}`

func TestRegistryFetch(t *testing.T) {
	var hits atomic.Uint64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/p2/acme/lib.json":
			hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(libMetadata))
		case "/p2/acme/broken.json":
			w.Write([]byte("{not json"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	reg, err := NewRegistry(srv.URL)
	require.NoError(t, err)

	data, err := reg.FetchPackage(context.Background(), "acme/lib")
	require.NoError(t, err)
	assert.Len(t, data.Versions, 2)
	assert.Equal(t, "1.2.0", data.Versions[1].Version.String())
	assert.EqualValues(t, 1, hits.Load())

	_, err = reg.FetchPackage(context.Background(), "acme/gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = reg.FetchPackage(context.Background(), "acme/broken")
	assert.Error(t, err)
}

func TestRegistryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg, err := NewRegistry(srv.URL)
	require.NoError(t, err)

	_, err = reg.FetchPackage(context.Background(), "acme/lib")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNewRegistryBadURL(t *testing.T) {
	_, err := NewRegistry("://nope")
	assert.Error(t, err)
}
