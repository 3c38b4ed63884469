package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countradooku/libretto"
)

func writeManifest(t *testing.T, root, vendor, project, version, body string) {
	t.Helper()
	dir := filepath.Join(root, vendor, project, version)
	require.NoError(t, os.MkdirAll(dir, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, libretto.ManifestName), []byte(body), 0666))
}

func TestPathFetcher(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "acme", "lib", "1.0.0", "name: acme/lib\n")
	writeManifest(t, root, "acme", "lib", "1.2.0", `name: acme/lib
require:
  acme/base: ^1.0
`)
	writeManifest(t, root, "acme", "base", "1.1.0", "name: acme/base\n")

	f := &PathFetcher{Root: root}
	ctx := context.Background()

	data, err := f.FetchPackage(ctx, "acme/lib")
	require.NoError(t, err)
	require.Len(t, data.Versions, 2)
	var got []string
	for _, rec := range data.Versions {
		got = append(got, rec.Version.String())
	}
	assert.ElementsMatch(t, []string{"1.0.0", "1.2.0"}, got)
	for _, rec := range data.Versions {
		if rec.Version.String() == "1.2.0" {
			require.Len(t, rec.Requires, 1)
			assert.Equal(t, libretto.PackageName("acme/base"), rec.Requires[0].Name)
		}
		require.NotNil(t, rec.Dist)
		assert.Equal(t, "path", rec.Dist.Type)
	}

	_, err = f.FetchPackage(ctx, "acme/nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no package")
}

func TestPathFetcherBadManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "acme", "lib", "1.0.0", "bogus-field: 1\n")

	f := &PathFetcher{Root: root}
	_, err := f.FetchPackage(context.Background(), "acme/lib")
	assert.Error(t, err)
}

func TestPathFetcherSolves(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "acme", "app", "1.0.0", `name: acme/app
require:
  acme/base: ^1.0
`)
	writeManifest(t, root, "acme", "base", "1.1.0", "name: acme/base\n")

	s, err := libretto.Prepare(libretto.SolveParameters{
		RootDependencies: []libretto.Dependency{{
			Name:       "acme/app",
			Constraint: libretto.MustParseConstraint("*"),
		}},
	}, &PathFetcher{Root: root})
	require.NoError(t, err)
	defer s.Release()

	res, err := s.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Len())
	assert.True(t, res.Contains("acme/base"))
}
