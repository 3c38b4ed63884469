package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/countradooku/libretto"
)

// Registry fetches package metadata over HTTP from an endpoint serving
// JSON documents at <base>/p2/<vendor>/<project>.json:
//
//	{"name": "...", "versions": [...], "providers": [...]}
//
// Concurrent fetches of the same package collapse into one request.
// Safe for concurrent use.
type Registry struct {
	base   *url.URL
	client *http.Client
	group  singleflight.Group
	l      *logrus.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithHTTPClient substitutes the HTTP client.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(r *Registry) { r.client = c }
}

// WithRegistryLogger attaches a structured logger.
func WithRegistryLogger(l *logrus.Logger) RegistryOption {
	return func(r *Registry) { r.l = l }
}

func NewRegistry(baseURL string, opts ...RegistryOption) (*Registry, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid registry URL")
	}
	r := &Registry{
		base:   u,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.l == nil {
		r.l = logrus.New()
		r.l.SetLevel(logrus.PanicLevel)
	}
	return r, nil
}

// FetchPackage implements libretto.Fetcher.
func (r *Registry) FetchPackage(ctx context.Context, name libretto.PackageName) (libretto.PackageData, error) {
	v, err, _ := r.group.Do(string(name), func() (interface{}, error) {
		return r.fetch(ctx, name)
	})
	if err != nil {
		return libretto.PackageData{}, err
	}
	return v.(libretto.PackageData), nil
}

func (r *Registry) fetch(ctx context.Context, name libretto.PackageName) (libretto.PackageData, error) {
	u := *r.base
	u.Path = strings.TrimRight(u.Path, "/") + "/p2/" + string(name) + ".json"

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return libretto.PackageData{}, errors.Wrapf(err, "building request for %s", name)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return libretto.PackageData{}, errors.Wrapf(err, "requesting %s", name)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return libretto.PackageData{}, fmt.Errorf("package %s not found in registry", name)
	default:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return libretto.PackageData{}, fmt.Errorf("registry returned %s for %s", resp.Status, name)
	}

	var pj packageJSON
	if err := json.NewDecoder(resp.Body).Decode(&pj); err != nil {
		return libretto.PackageData{}, errors.Wrapf(err, "decoding metadata for %s", name)
	}
	data, err := toPackageData(name, pj)
	if err != nil {
		return libretto.PackageData{}, err
	}

	if r.l.Level >= logrus.DebugLevel {
		r.l.WithFields(logrus.Fields{
			"package":  name,
			"versions": len(data.Versions),
			"took":     time.Since(start),
		}).Debug("fetched package metadata")
	}
	return data, nil
}
