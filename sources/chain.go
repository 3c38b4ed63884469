package sources

import (
	"context"

	"github.com/pkg/errors"

	"github.com/countradooku/libretto"
)

// Chain tries each fetcher in order, returning the first success. A
// package counts as missing only when every fetcher fails for it.
type Chain []libretto.Fetcher

// FetchPackage implements libretto.Fetcher.
func (c Chain) FetchPackage(ctx context.Context, name libretto.PackageName) (libretto.PackageData, error) {
	if len(c) == 0 {
		return libretto.PackageData{}, errors.New("empty fetcher chain")
	}
	var firstErr error
	for _, f := range c {
		data, err := f.FetchPackage(ctx, name)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return libretto.PackageData{}, err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return libretto.PackageData{}, firstErr
}
