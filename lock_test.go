package libretto

import (
	"bytes"
	"strings"
	"testing"
)

func TestLockFromResolution(t *testing.T) {
	fix := basicFixture{
		pkgs: []string{
			"a 1.0.0: b ^1.0, php >=8.0",
			"b 1.2.0",
			"t 2.0.0",
		},
		r:    []string{"a *"},
		devr: []string{"t *"},
	}
	res, err := fix.solve(t)
	if err != nil {
		t.Fatalf("solve errored: %s", err)
	}

	l := LockFromResolution(res)
	if len(l.Packages) != 3 {
		t.Fatalf("locked %d packages, want 3", len(l.Packages))
	}
	// Installation order: b before a, dev tool last.
	if l.Packages[0].Name != "b" || l.Packages[1].Name != "a" || l.Packages[2].Name != "t" {
		t.Errorf("lock order = %v", l.Packages)
	}
	if !l.Packages[2].Dev {
		t.Error("dev requirement not marked dev in lock")
	}
	if len(l.Platform) != 1 || l.Platform[0].Name != "php" {
		t.Errorf("lock platform = %v, want php", l.Platform)
	}

	pins, err := l.Pins()
	if err != nil {
		t.Fatalf("Pins errored: %s", err)
	}
	if v, ok := pins["b"]; !ok || v.String() != "1.2.0" {
		t.Errorf("pins[b] = %v, %v, want 1.2.0", v, ok)
	}
}

func TestLockRoundtrip(t *testing.T) {
	l := &Lock{
		Packages: []LockedPackage{
			{
				Name:    "acme/lib",
				Version: "1.2.3",
				Dist:    &DistInfo{Type: "zip", URL: "https://example.test/lib.zip"},
			},
			{Name: "acme/testkit", Version: "dev-main", Dev: true},
		},
		Platform: []LockedPlatform{{Name: "php", Constraint: ">=8.1.0"}},
	}

	var buf bytes.Buffer
	if err := l.Write(&buf); err != nil {
		t.Fatalf("Write errored: %s", err)
	}
	back, err := ReadLock(&buf)
	if err != nil {
		t.Fatalf("ReadLock errored: %s", err)
	}
	if len(back.Packages) != 2 || back.Packages[0].Dist == nil || back.Packages[0].Dist.URL != l.Packages[0].Dist.URL {
		t.Fatalf("roundtrip lost packages: %+v", back.Packages)
	}
	if !back.Packages[1].Dev {
		t.Error("roundtrip lost dev flag")
	}

	pins, err := back.Pins()
	if err != nil {
		t.Fatalf("Pins errored: %s", err)
	}
	if v := pins["acme/testkit"]; !v.IsBranch() {
		t.Errorf("pins[acme/testkit] = %v, want branch version", v)
	}
}

func TestReadLockEmpty(t *testing.T) {
	l, err := ReadLock(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty lock errored: %s", err)
	}
	if len(l.Packages) != 0 {
		t.Errorf("empty lock has packages: %v", l.Packages)
	}
}

func TestLockPinsBadVersion(t *testing.T) {
	l := &Lock{Packages: []LockedPackage{{Name: "a", Version: "not a version"}}}
	if _, err := l.Pins(); err == nil {
		t.Error("malformed locked version unexpectedly accepted")
	}
}
