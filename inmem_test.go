package libretto

import (
	"context"
	"reflect"
	"testing"
)

func TestMapFetcherPrefixListing(t *testing.T) {
	f := mkfetcher(t, []string{
		"acme/app 1.0.0",
		"acme/lib 1.0.0",
		"acme/lib 1.2.0",
		"other/tool 2.0.0",
	})

	got := f.Packages("acme/")
	want := []PackageName{"acme/app", "acme/lib"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Packages(acme/) = %v, want %v", got, want)
	}
	if got := f.Packages(""); len(got) != 3 {
		t.Errorf("Packages(\"\") = %v, want all three", got)
	}
}

func TestMapFetcherProviders(t *testing.T) {
	f := mkfetcher(t, []string{
		"acme/impl 1.0.0: provide:virt/log 1.0.0",
	})
	ctx := context.Background()

	// A virtual name with no versions of its own still resolves to its
	// providers.
	data, err := f.FetchPackage(ctx, "virt/log")
	if err != nil {
		t.Fatalf("FetchPackage(virt/log) errored: %s", err)
	}
	if len(data.Versions) != 0 || !reflect.DeepEqual(data.Providers, []PackageName{"acme/impl"}) {
		t.Errorf("virt/log data = %+v", data)
	}

	if _, err := f.FetchPackage(ctx, "no/such"); err == nil {
		t.Error("unknown package unexpectedly fetched")
	}
}

func TestMapFetcherRemove(t *testing.T) {
	f := mkfetcher(t, []string{
		"acme/impl 1.0.0: provide:virt/log 1.0.0",
	})
	ctx := context.Background()

	if !f.Remove("acme/impl") {
		t.Fatal("Remove reported the package absent")
	}
	if f.Remove("acme/impl") {
		t.Error("second Remove reported the package present")
	}
	if _, err := f.FetchPackage(ctx, "acme/impl"); err == nil {
		t.Error("removed package still fetched")
	}
	if _, err := f.FetchPackage(ctx, "virt/log"); err == nil {
		t.Error("provider link survived removal")
	}
}
