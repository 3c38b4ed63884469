package sources

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countradooku/libretto"
)

type fetcherFunc func(context.Context, libretto.PackageName) (libretto.PackageData, error)

func (f fetcherFunc) FetchPackage(ctx context.Context, name libretto.PackageName) (libretto.PackageData, error) {
	return f(ctx, name)
}

func TestChainFallsThrough(t *testing.T) {
	miss := fetcherFunc(func(_ context.Context, name libretto.PackageName) (libretto.PackageData, error) {
		return libretto.PackageData{}, errors.Errorf("no %s here", name)
	})
	hit := fetcherFunc(func(_ context.Context, name libretto.PackageName) (libretto.PackageData, error) {
		return libretto.PackageData{Name: name}, nil
	})

	data, err := Chain{miss, hit}.FetchPackage(context.Background(), "acme/lib")
	require.NoError(t, err)
	assert.Equal(t, libretto.PackageName("acme/lib"), data.Name)

	// First success wins; later fetchers are not consulted.
	calls := 0
	counting := fetcherFunc(func(_ context.Context, name libretto.PackageName) (libretto.PackageData, error) {
		calls++
		return libretto.PackageData{Name: name}, nil
	})
	_, err = Chain{hit, counting}.FetchPackage(context.Background(), "acme/lib")
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestChainReportsFirstError(t *testing.T) {
	first := fetcherFunc(func(_ context.Context, _ libretto.PackageName) (libretto.PackageData, error) {
		return libretto.PackageData{}, errors.New("registry unreachable")
	})
	second := fetcherFunc(func(_ context.Context, _ libretto.PackageName) (libretto.PackageData, error) {
		return libretto.PackageData{}, errors.New("disk on fire")
	})

	_, err := Chain{first, second}.FetchPackage(context.Background(), "acme/lib")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry unreachable")
}

func TestChainEmpty(t *testing.T) {
	_, err := Chain{}.FetchPackage(context.Background(), "acme/lib")
	assert.Error(t, err)
}

func TestChainStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	failing := fetcherFunc(func(_ context.Context, _ libretto.PackageName) (libretto.PackageData, error) {
		cancel()
		return libretto.PackageData{}, errors.New("interrupted")
	})
	calls := 0
	next := fetcherFunc(func(_ context.Context, name libretto.PackageName) (libretto.PackageData, error) {
		calls++
		return libretto.PackageData{Name: name}, nil
	})

	_, err := Chain{failing, next}.FetchPackage(ctx, "acme/lib")
	require.Error(t, err)
	assert.Zero(t, calls)
}
