package sources

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/gofrs/flock"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/countradooku/libretto"
)

// BoltCache persists package metadata from an upstream Fetcher in a
// BoltDB file. Stored values are timestamped; the epoch field limits the
// age of returned values, so bumping it invalidates everything cached
// before. A file lock guards the database against concurrent processes.
//
// Layout, per package:
//
//	Bucket: "pkg:<name>"
//	Key "ts": write time, unix seconds
//	Key "data": JSON document
//	Sub-bucket "versions": <sequence> -> "<version>"
//
// The versions sub-bucket duplicates what the document carries so tools
// can list cached versions without decoding whole documents.
type BoltCache struct {
	upstream libretto.Fetcher
	db       *bolt.DB
	lock     *flock.Flock
	epoch    int64
	l        *logrus.Logger
}

const cacheFileMode = 0600

// NewBoltCache opens (creating if needed) the cache under dir. Values
// written before epoch are treated as absent.
func NewBoltCache(dir string, upstream libretto.Fetcher, epoch int64, l *logrus.Logger) (*BoltCache, error) {
	if upstream == nil {
		return nil, errors.New("no upstream fetcher provided")
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache directory %s", dir)
	}

	lock := flock.New(filepath.Join(dir, "packages.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire cache lock")
	}
	if !locked {
		return nil, errors.Errorf("metadata cache %s is in use by another process", dir)
	}

	db, err := bolt.Open(filepath.Join(dir, "packages.db"), cacheFileMode, &bolt.Options{Timeout: time.Second})
	if err != nil {
		lock.Unlock()
		return nil, errors.Wrap(err, "failed to open cache database")
	}

	if l == nil {
		l = logrus.New()
		l.SetLevel(logrus.PanicLevel)
	}
	return &BoltCache{upstream: upstream, db: db, lock: lock, epoch: epoch, l: l}, nil
}

// Close releases the database and the file lock. Must not be called
// concurrently with FetchPackage.
func (c *BoltCache) Close() error {
	err := errors.Wrap(c.db.Close(), "error closing cache database")
	if uerr := c.lock.Unlock(); uerr != nil && err == nil {
		err = errors.Wrap(uerr, "error releasing cache lock")
	}
	return err
}

// FetchPackage implements libretto.Fetcher, answering from the cache
// when a fresh entry exists and falling through to the upstream
// otherwise. Upstream failures are not cached.
func (c *BoltCache) FetchPackage(ctx context.Context, name libretto.PackageName) (libretto.PackageData, error) {
	if data, ok := c.get(name); ok {
		if c.l.Level >= logrus.DebugLevel {
			c.l.WithField("package", name).Debug("cache hit")
		}
		return data, nil
	}

	data, err := c.upstream.FetchPackage(ctx, name)
	if err != nil {
		return libretto.PackageData{}, err
	}
	if err := c.put(name, data); err != nil {
		c.l.WithError(err).WithField("package", name).Warn("failed to cache package metadata")
	}
	return data, nil
}

func (c *BoltCache) get(name libretto.PackageName) (libretto.PackageData, bool) {
	var data libretto.PackageData
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(cacheBucketName(name))
		if b == nil {
			return nil
		}
		ts := b.Get([]byte("ts"))
		if len(ts) == 0 || int64(decodeKey(ts)) < c.epoch {
			return nil
		}
		raw := b.Get([]byte("data"))
		if raw == nil {
			return nil
		}
		var pj packageJSON
		if err := json.Unmarshal(raw, &pj); err != nil {
			return err
		}
		d, err := toPackageData(name, pj)
		if err != nil {
			return err
		}
		data, found = d, true
		return nil
	})
	if err != nil {
		c.l.WithError(err).WithField("package", name).Warn("discarding unreadable cache entry")
		return libretto.PackageData{}, false
	}
	return data, found
}

func (c *BoltCache) put(name libretto.PackageName, data libretto.PackageData) error {
	raw, err := json.Marshal(fromPackageData(data))
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		bname := cacheBucketName(name)
		if tx.Bucket(bname) != nil {
			if err := tx.DeleteBucket(bname); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bname)
		if err != nil {
			return err
		}

		ts := make(nuts.Key, 8)
		ts.Put(uint64(time.Now().Unix()))
		if err := b.Put([]byte("ts"), ts); err != nil {
			return err
		}
		if err := b.Put([]byte("data"), raw); err != nil {
			return err
		}

		vb, err := b.CreateBucket([]byte("versions"))
		if err != nil {
			return err
		}
		if len(data.Versions) == 0 {
			return nil
		}
		klen := nuts.KeyLen(uint64(len(data.Versions) - 1))
		for i, rec := range data.Versions {
			// Bolt holds key slices for the life of the tx; allocate
			// fresh ones.
			key := make(nuts.Key, klen)
			key.Put(uint64(i))
			if err := vb.Put(key, []byte(rec.Version.String())); err != nil {
				return err
			}
		}
		return nil
	})
}

func cacheBucketName(name libretto.PackageName) []byte {
	return []byte("pkg:" + string(name))
}

func decodeKey(b []byte) uint64 {
	var x uint64
	for _, c := range b {
		x = x<<8 | uint64(c)
	}
	return x
}
