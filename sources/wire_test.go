package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countradooku/libretto"
)

func TestWireRoundtrip(t *testing.T) {
	pj := packageJSON{
		Name: "acme/lib",
		Versions: []versionJSON{
			{
				Version: "1.2.0",
				Require: map[string]string{"acme/base": "^1.0", "php": ">=8.0"},
				Provide: map[string]string{"virt/log": "1.0.0"},
				Replace: map[string]string{"legacy/lib": "1.2.0"},
				Dist: &distJSON{
					Type: "zip", URL: "https://example.test/lib.zip", Shasum: "abc",
				},
				Source: &sourceJSON{
					Type: "git", URL: "https://example.test/lib.git", Reference: "deadbeef",
				},
			},
			{Version: "dev-main"},
		},
		Providers: []string{"acme/lib-impl"},
	}

	data, err := toPackageData("acme/lib", pj)
	require.NoError(t, err)
	require.Len(t, data.Versions, 2)

	rec := data.Versions[0]
	assert.Equal(t, "1.2.0", rec.Version.String())
	require.Len(t, rec.Requires, 2)
	assert.Equal(t, libretto.PackageName("acme/base"), rec.Requires[0].Name)
	require.Len(t, rec.Provides, 1)
	assert.Equal(t, libretto.PackageName("virt/log"), rec.Provides[0].Name)
	require.NotNil(t, rec.Dist)
	assert.Equal(t, "abc", rec.Dist.Shasum)
	require.NotNil(t, rec.Source)
	assert.Equal(t, "deadbeef", rec.Source.Reference)
	assert.True(t, data.Versions[1].Version.IsBranch())
	assert.Equal(t, []libretto.PackageName{"acme/lib-impl"}, data.Providers)

	back := fromPackageData(data)
	assert.Equal(t, pj.Name, back.Name)
	require.Len(t, back.Versions, 2)
	assert.Equal(t, pj.Versions[0].Require, back.Versions[0].Require)
	assert.Equal(t, pj.Versions[0].Replace, back.Versions[0].Replace)
	assert.Equal(t, pj.Versions[0].Dist, back.Versions[0].Dist)
	assert.Equal(t, pj.Providers, back.Providers)
}

func TestWireRejectsBadData(t *testing.T) {
	_, err := toPackageData("acme/lib", packageJSON{
		Versions: []versionJSON{{Version: "not a version"}},
	})
	assert.Error(t, err)

	_, err = toPackageData("acme/lib", packageJSON{
		Versions: []versionJSON{{
			Version: "1.0.0",
			Require: map[string]string{"acme/base": "^^nope"},
		}},
	})
	assert.Error(t, err)
}
