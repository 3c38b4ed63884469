package libretto

import (
	"github.com/armon/go-radix"
)

// Typed wrapper around the radix tree so callers don't type assert.
// Keys are package names; prefix walks back the vendor-scoped listing in
// MapFetcher.

type packageTrie struct {
	t *radix.Tree
}

func newPackageTrie() packageTrie {
	return packageTrie{
		t: radix.New(),
	}
}

// Get is used to look up a specific key, returning the value and whether
// it was found.
func (t packageTrie) Get(name PackageName) (PackageData, bool) {
	if v, has := t.t.Get(string(name)); has {
		return v.(PackageData), has
	}
	return PackageData{}, false
}

// Insert adds a new entry or updates an existing one. Returns whether an
// entry was replaced.
func (t packageTrie) Insert(name PackageName, d PackageData) (PackageData, bool) {
	if v, had := t.t.Insert(string(name), d); had {
		return v.(PackageData), had
	}
	return PackageData{}, false
}

// Delete removes a key, returning the previous value and whether it was
// present.
func (t packageTrie) Delete(name PackageName) (PackageData, bool) {
	if v, had := t.t.Delete(string(name)); had {
		return v.(PackageData), had
	}
	return PackageData{}, false
}

// Len returns the number of elements in the tree.
func (t packageTrie) Len() int {
	return t.t.Len()
}

// WalkPrefix visits every entry under the prefix in key order; the walk
// stops early when fn returns true.
func (t packageTrie) WalkPrefix(prefix string, fn func(PackageName, PackageData) bool) {
	t.t.WalkPrefix(prefix, func(k string, v interface{}) bool {
		return fn(PackageName(k), v.(PackageData))
	})
}
