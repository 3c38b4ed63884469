package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/countradooku/libretto"
	"github.com/countradooku/libretto/sources"
)

type options struct {
	registry   string
	cacheDir   string
	cacheEpoch time.Duration
	dir        string
	maxFetch   int
	verbose    bool
	trace      bool

	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{logger: logrus.New()}

	root := &cobra.Command{
		Use:           "libretto",
		Short:         "dependency resolution for package manifests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			opts.logger.SetOutput(os.Stderr)
			if opts.verbose {
				opts.logger.SetLevel(logrus.DebugLevel)
			} else {
				opts.logger.SetLevel(logrus.WarnLevel)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.registry, "registry", "https://repo.packagist.org", "registry base URL")
	pf.StringVar(&opts.cacheDir, "cache", defaultCacheDir(), "metadata cache directory (empty disables caching)")
	pf.DurationVar(&opts.cacheEpoch, "cache-max-age", 24*time.Hour, "discard cached metadata older than this")
	pf.StringVarP(&opts.dir, "dir", "C", ".", "project directory")
	pf.IntVar(&opts.maxFetch, "max-fetch", 0, "max concurrent metadata fetches (0 = auto)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.trace, "trace", false, "print the solver's step log")

	root.AddCommand(
		newInstallCmd(opts),
		newUpdateCmd(opts),
		newShowCmd(opts),
		newValidateCmd(opts),
		newWhyCmd(opts),
	)
	return root
}

func defaultCacheDir() string {
	if d, err := os.UserCacheDir(); err == nil {
		return filepath.Join(d, "libretto")
	}
	return ""
}

func (o *options) manifestPath() string { return filepath.Join(o.dir, libretto.ManifestName) }
func (o *options) lockPath() string     { return filepath.Join(o.dir, libretto.LockName) }

func (o *options) readManifest() (*libretto.Manifest, error) {
	f, err := os.Open(o.manifestPath())
	if err != nil {
		return nil, errors.Wrapf(err, "no manifest at %s", o.manifestPath())
	}
	defer f.Close()
	return libretto.ReadManifest(f)
}

// readLock returns an empty lock when the file does not exist yet.
func (o *options) readLock() (*libretto.Lock, error) {
	f, err := os.Open(o.lockPath())
	if os.IsNotExist(err) {
		return &libretto.Lock{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return libretto.ReadLock(f)
}

func (o *options) writeLock(l *libretto.Lock) error {
	f, err := os.Create(o.lockPath())
	if err != nil {
		return err
	}
	if err := l.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// fetcher builds the metadata pipeline: registry, wrapped in the bolt
// cache when one is configured. The returned closer may be nil.
func (o *options) fetcher() (libretto.Fetcher, func() error, error) {
	reg, err := sources.NewRegistry(o.registry, sources.WithRegistryLogger(o.logger))
	if err != nil {
		return nil, nil, err
	}
	if o.cacheDir == "" {
		return reg, nil, nil
	}
	epoch := time.Now().Add(-o.cacheEpoch).Unix()
	cache, err := sources.NewBoltCache(o.cacheDir, reg, epoch, o.logger)
	if err != nil {
		o.logger.WithError(err).Warn("metadata cache unavailable, continuing without it")
		return reg, nil, nil
	}
	return cache, cache.Close, nil
}

// solve runs a full resolution for the project manifest.
func (o *options) solve(ctx context.Context, mode libretto.SelectionMode, useLock bool) (*libretto.Resolution, error) {
	m, err := o.readManifest()
	if err != nil {
		return nil, err
	}
	deps, err := m.Dependencies()
	if err != nil {
		return nil, err
	}
	devDeps, err := m.DevDependencies()
	if err != nil {
		return nil, err
	}
	stability, err := m.Stability()
	if err != nil {
		return nil, err
	}

	params := libretto.SolveParameters{
		RootDependencies:    deps,
		RootDevDependencies: devDeps,
		Mode:                mode,
		MinimumStability:    stability,
		MaxConcurrent:       o.maxFetch,
		Logger:              o.logger,
	}
	if useLock {
		lock, err := o.readLock()
		if err != nil {
			return nil, err
		}
		if params.Locked, err = lock.Pins(); err != nil {
			return nil, err
		}
	}
	if o.trace {
		params.Trace = true
		params.TraceLogger = log.New(os.Stderr, "", 0)
	}

	f, closer, err := o.fetcher()
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer()
	}

	s, err := libretto.Prepare(params, f)
	if err != nil {
		return nil, err
	}
	defer s.Release()
	return s.Solve(ctx)
}
