package libretto

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sdboyer/constext"
	"golang.org/x/sync/semaphore"
)

// FetchStats counts metadata traffic over one solver's lifetime. Requests
// are unique package names; a package is never fetched twice.
type FetchStats struct {
	Requested uint64
	Completed uint64
	Failed    uint64
}

type fetchEntry struct {
	data PackageData
	err  error
	done chan struct{}
}

// fetchManager fans package metadata requests out to the Fetcher, capped
// at a fixed number of in-flight calls, and deduplicates by name for the
// lifetime of the solve. Requests fire the moment the solver first
// mentions a package; await is the only blocking point.
type fetchManager struct {
	f    Fetcher
	sema *semaphore.Weighted

	// ctx spans the solver's lifetime; each fetch joins it with the
	// caller's Solve context so either side can cancel.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[PackageName]*fetchEntry

	requested atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

func newFetchManager(f Fetcher, maxConcurrent int) *fetchManager {
	if maxConcurrent <= 0 {
		maxConcurrent = 2 * runtime.GOMAXPROCS(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &fetchManager{
		f:       f,
		sema:    semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[PackageName]*fetchEntry),
	}
}

// request starts the fetch for pkg if one is not already running or done.
func (fm *fetchManager) request(ctx context.Context, pkg PackageName) {
	fm.mu.Lock()
	if _, ok := fm.entries[pkg]; ok {
		fm.mu.Unlock()
		return
	}
	e := &fetchEntry{done: make(chan struct{})}
	fm.entries[pkg] = e
	fm.mu.Unlock()

	fm.requested.Add(1)
	cctx, cancelFunc := constext.Cons(fm.ctx, ctx)
	go func() {
		defer close(e.done)
		defer cancelFunc()

		if err := fm.sema.Acquire(cctx, 1); err != nil {
			e.err = &FetchError{Package: pkg, Err: err}
			fm.failed.Add(1)
			return
		}
		defer fm.sema.Release(1)

		data, err := fm.f.FetchPackage(cctx, pkg)
		if err != nil {
			e.err = &FetchError{Package: pkg, Err: err}
			fm.failed.Add(1)
			return
		}
		e.data = data
		fm.completed.Add(1)
	}()
}

// await blocks until pkg's metadata is available, the fetch fails, or the
// caller's context is done.
func (fm *fetchManager) await(ctx context.Context, pkg PackageName) (PackageData, error) {
	fm.request(ctx, pkg)

	fm.mu.Lock()
	e := fm.entries[pkg]
	fm.mu.Unlock()

	select {
	case <-e.done:
		if e.err != nil && ctx.Err() != nil {
			// The fetch lost a race with the caller's cancellation; a
			// failure observed on a dead context is a cancellation, not
			// a package problem.
			return PackageData{}, ErrCancelled
		}
		return e.data, e.err
	case <-ctx.Done():
		return PackageData{}, ErrCancelled
	}
}

func (fm *fetchManager) stats() FetchStats {
	return FetchStats{
		Requested: fm.requested.Load(),
		Completed: fm.completed.Load(),
		Failed:    fm.failed.Load(),
	}
}

// release cancels any in-flight fetches. The manager is unusable after.
func (fm *fetchManager) release() {
	fm.cancel()
}
