package libretto

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadManifest(t *testing.T) {
	in := strings.NewReader(`name: acme/app
minimum-stability: beta
require:
  acme/lib: ^1.2
  php: ">=8.1"
require-dev:
  acme/testkit: ~2.0
`)
	m, err := ReadManifest(in)
	if err != nil {
		t.Fatalf("ReadManifest errored: %s", err)
	}
	if m.Name != "acme/app" {
		t.Errorf("name = %s, want acme/app", m.Name)
	}

	deps, err := m.Dependencies()
	if err != nil {
		t.Fatalf("Dependencies errored: %s", err)
	}
	if len(deps) != 2 || deps[0].Name != "acme/lib" || deps[1].Name != "php" {
		t.Fatalf("dependencies = %v, want acme/lib then php", deps)
	}
	if !deps[0].Constraint.Matches(mustVersion("1.4.0")) {
		t.Errorf("acme/lib constraint %s rejects 1.4.0", deps[0].Constraint)
	}

	dev, err := m.DevDependencies()
	if err != nil {
		t.Fatalf("DevDependencies errored: %s", err)
	}
	if len(dev) != 1 || dev[0].Name != "acme/testkit" {
		t.Fatalf("dev dependencies = %v, want acme/testkit", dev)
	}

	st, err := m.Stability()
	if err != nil || st != StabilityBeta {
		t.Errorf("stability = %v, %v, want beta", st, err)
	}
}

func TestReadManifestErrors(t *testing.T) {
	if _, err := ReadManifest(strings.NewReader("unknown-field: true\n")); err == nil {
		t.Error("unknown field unexpectedly accepted")
	}

	m, err := ReadManifest(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty manifest errored: %s", err)
	}
	if deps, err := m.Dependencies(); err != nil || len(deps) != 0 {
		t.Errorf("empty manifest dependencies = %v, %v", deps, err)
	}

	m = &Manifest{Require: map[string]string{"acme/lib": "^^oops"}}
	if _, err := m.Dependencies(); err == nil {
		t.Error("malformed constraint unexpectedly accepted")
	}
}

func TestManifestRoundtrip(t *testing.T) {
	m := &Manifest{
		Name:             "acme/app",
		Require:          map[string]string{"acme/lib": "^1.0"},
		RequireDev:       map[string]string{"acme/testkit": "*"},
		MinimumStability: "dev",
	}
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("Write errored: %s", err)
	}
	back, err := ReadManifest(&buf)
	if err != nil {
		t.Fatalf("ReadManifest errored: %s", err)
	}
	if back.Name != m.Name || back.MinimumStability != m.MinimumStability {
		t.Errorf("roundtrip lost fields: %+v", back)
	}
	if back.Require["acme/lib"] != "^1.0" || back.RequireDev["acme/testkit"] != "*" {
		t.Errorf("roundtrip lost requirements: %+v", back)
	}
}
