package store

import (
	"bytes"
	"testing"

	"github.com/goalsarm/goalsfit/internal/prior"
)

func TestHashWithDomain_Separation(t *testing.T) {
	// Moving bytes across the domain/data boundary must change the hash.
	a := hashWithDomain("ab", []byte("c"))
	b := hashWithDomain("a", []byte("bc"))
	if a == b {
		t.Error("domain separation failed: hashes collide")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestCanonicalCatalog_Encoding(t *testing.T) {
	set := createTestCatalog(t)

	got, err := canonicalCatalog(set)
	if err != nil {
		t.Fatalf("canonicalCatalog() failed: %v", err)
	}
	want := `[{"family":"beta","initial":0.01,"name":"seed.prev","shape1":1,"shape2":99},` +
		`{"family":"lognormal","initial":1,"name":"transmit.f2m","shape1":0,"shape2":0.5}]`
	if string(got) != want {
		t.Errorf("canonical catalog:\n got %s\nwant %s", got, want)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a, err := Fingerprint(createTestCatalog(t))
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	b, err := Fingerprint(createTestCatalog(t))
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	if a != b {
		t.Errorf("fingerprints differ for identical catalogs: %s vs %s", a, b)
	}
}

func TestFingerprint_IgnoresFittedValues(t *testing.T) {
	set := createTestCatalog(t)
	before, _ := Fingerprint(set)
	if err := set.SetFitted([]float64{0.02, 1.5}); err != nil {
		t.Fatalf("SetFitted() failed: %v", err)
	}
	after, _ := Fingerprint(set)
	if before != after {
		t.Error("fitted values changed the fingerprint")
	}
}

func TestFingerprint_SensitiveToPriors(t *testing.T) {
	base, _ := Fingerprint(createTestCatalog(t))

	seed, _ := prior.NewParameter("seed.prev", 0.01, "beta", 2, 99)
	f2m, _ := prior.NewParameter("transmit.f2m", 1.0, "lognormal", 0, 0.5)
	changed, err := prior.NewSet(seed, f2m)
	if err != nil {
		t.Fatalf("NewSet() failed: %v", err)
	}
	other, _ := Fingerprint(changed)
	if base == other {
		t.Error("changing a prior shape did not change the fingerprint")
	}
}

func TestWriteCanonicalString_NFCAndNoHTMLEscape(t *testing.T) {
	var buf bytes.Buffer
	if err := writeCanonicalString(&buf, "cafe\u0301 <&>"); err != nil {
		t.Fatalf("writeCanonicalString() failed: %v", err)
	}
	if got, want := buf.String(), "\"caf\u00e9 <&>\""; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
