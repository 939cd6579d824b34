// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package apt

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// passVerifier accepts everything; the OpenPGP backend in pkg/apt/keyring
// is not exercised by these tests.
type passVerifier struct{}

func (passVerifier) VerifyCleartext(signed []byte) ([]byte, error) { return signed, nil }
func (passVerifier) VerifyDetached(message, sig []byte) error      { return nil }

type failVerifier struct{}

func (failVerifier) VerifyCleartext(signed []byte) ([]byte, error) {
	return nil, errors.New("no matching key")
}
func (failVerifier) VerifyDetached(message, sig []byte) error {
	return errors.New("no matching key")
}

func sha256hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const packagesBody = `Package: base-files
Version: 12.4
Architecture: amd64
Filename: pool/main/b/base-files/base-files_12.4_amd64.deb
Size: 70000
SHA256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
`

func testIndex(t *testing.T) []byte {
	t.Helper()
	return []byte(packagesBody)
}

func releaseFor(files map[string][]byte) []byte {
	var b strings.Builder
	b.WriteString("Suite: stable\nCodename: stable\nComponents: main\nArchitectures: amd64 all\nDate: Thu, 01 Jan 2026 00:00:00 UTC\nSHA256:\n")
	for name, content := range files {
		fmt.Fprintf(&b, " %s %d %s\n", sha256hex(content), len(content), name)
	}
	return []byte(b.String())
}

func newServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for name, content := range files {
		mux.HandleFunc("/dists/stable/"+name, func(w http.ResponseWriter, r *http.Request) {
			w.Write(content)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchReleaseInRelease(t *testing.T) {
	index := gzipBytes(t, testIndex(t))
	release := releaseFor(map[string][]byte{"main/binary-amd64/Packages.gz": index})
	srv := newServer(t, map[string][]byte{
		"InRelease":                    release,
		"main/binary-amd64/Packages.gz": index,
	})
	client := &Client{HTTP: srv.Client(), Verifier: passVerifier{}}
	repo := NewRepository(srv.URL, "stable", "amd64", nil)
	rel, err := client.FetchRelease(context.Background(), repo)
	if err != nil {
		t.Fatalf("FetchRelease() failed: %v", err)
	}
	if rel.Suite != "stable" {
		t.Errorf("Suite = %q, want stable", rel.Suite)
	}
	entry, ok := rel.Entries["main/binary-amd64/Packages.gz"]
	if !ok {
		t.Fatal("Packages.gz missing from release entries")
	}
	if entry.Size != int64(len(index)) {
		t.Errorf("entry size = %d, want %d", entry.Size, len(index))
	}

	idx, err := client.FetchIndex(context.Background(), repo, rel, "main", "amd64")
	if err != nil {
		t.Fatalf("FetchIndex() failed: %v", err)
	}
	if len(idx.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(idx.Records))
	}
	if v := idx.Records[0].Value("Package"); v != "base-files" {
		t.Errorf("Package = %q, want base-files", v)
	}
}

func TestFetchReleaseFallbackToDetached(t *testing.T) {
	release := releaseFor(map[string][]byte{})
	srv := newServer(t, map[string][]byte{
		"Release":     release,
		"Release.gpg": []byte("fake signature"),
	})
	client := &Client{HTTP: srv.Client(), Verifier: passVerifier{}}
	repo := NewRepository(srv.URL, "stable", "amd64", nil)
	if _, err := client.FetchRelease(context.Background(), repo); err != nil {
		t.Fatalf("FetchRelease() fallback failed: %v", err)
	}
}

func TestFetchReleaseBothMissing(t *testing.T) {
	srv := newServer(t, map[string][]byte{})
	client := &Client{HTTP: srv.Client(), Verifier: passVerifier{}}
	repo := NewRepository(srv.URL, "stable", "amd64", nil)
	_, err := client.FetchRelease(context.Background(), repo)
	if err == nil {
		t.Fatal("FetchRelease() succeeded, want error")
	}
	if got := errkind.Of(err); got != errkind.Transport {
		t.Errorf("error kind = %q, want transport", got)
	}
	for _, want := range []string{"InRelease", "Release"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s URL", err, want)
		}
	}
}

func TestFetchReleaseBadSignature(t *testing.T) {
	srv := newServer(t, map[string][]byte{"InRelease": releaseFor(nil)})
	client := &Client{HTTP: srv.Client(), Verifier: failVerifier{}}
	repo := NewRepository(srv.URL, "stable", "amd64", nil)
	_, err := client.FetchRelease(context.Background(), repo)
	if got := errkind.Of(err); got != errkind.Verification {
		t.Errorf("error kind = %q, want verification", got)
	}
}

func TestFetchReleaseExpired(t *testing.T) {
	release := append(releaseFor(nil), []byte("Valid-Until: Thu, 01 Jan 2026 00:00:00 UTC\n")...)
	srv := newServer(t, map[string][]byte{"InRelease": release})
	client := &Client{
		HTTP:     srv.Client(),
		Verifier: passVerifier{},
		Now:      func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
	repo := NewRepository(srv.URL, "stable", "amd64", nil)
	_, err := client.FetchRelease(context.Background(), repo)
	if got := errkind.Of(err); got != errkind.Verification {
		t.Errorf("error kind = %q, want verification, err=%v", got, err)
	}
}

func TestFetchIndexTampered(t *testing.T) {
	index := gzipBytes(t, testIndex(t))
	release := releaseFor(map[string][]byte{"main/binary-amd64/Packages.gz": index})
	srv := newServer(t, map[string][]byte{
		"InRelease":                    release,
		"main/binary-amd64/Packages.gz": append(index, []byte("tampered")...),
	})
	client := &Client{HTTP: srv.Client(), Verifier: passVerifier{}}
	repo := NewRepository(srv.URL, "stable", "amd64", nil)
	rel, err := client.FetchRelease(context.Background(), repo)
	if err != nil {
		t.Fatalf("FetchRelease() failed: %v", err)
	}
	_, err = client.FetchIndex(context.Background(), repo, rel, "main", "amd64")
	if got := errkind.Of(err); got != errkind.Verification {
		t.Errorf("error kind = %q, want verification, err=%v", got, err)
	}
	if !strings.Contains(err.Error(), "Packages.gz") {
		t.Errorf("error %q does not cite the Packages file", err)
	}
}

func TestFetchIndexPrefersStrongerCompression(t *testing.T) {
	plain := testIndex(t)
	gz := gzipBytes(t, plain)
	release := releaseFor(map[string][]byte{
		"main/binary-amd64/Packages.gz": gz,
		"main/binary-amd64/Packages":    plain,
	})
	srv := newServer(t, map[string][]byte{
		"InRelease":                    release,
		"main/binary-amd64/Packages.gz": gz,
		"main/binary-amd64/Packages":    plain,
	})
	client := &Client{HTTP: srv.Client(), Verifier: passVerifier{}}
	repo := NewRepository(srv.URL, "stable", "amd64", nil)
	rel, err := client.FetchRelease(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := client.FetchIndex(context.Background(), repo, rel, "main", "amd64")
	if err != nil {
		t.Fatalf("FetchIndex() failed: %v", err)
	}
	if len(idx.Records) != 1 {
		t.Errorf("got %d records, want 1", len(idx.Records))
	}
}

func TestFetchIndexMissing(t *testing.T) {
	srv := newServer(t, map[string][]byte{"InRelease": releaseFor(nil)})
	client := &Client{HTTP: srv.Client(), Verifier: passVerifier{}}
	repo := NewRepository(srv.URL, "stable", "amd64", nil)
	rel, err := client.FetchRelease(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.FetchIndex(context.Background(), repo, rel, "main", "amd64")
	if got := errkind.Of(err); got != errkind.MalformedIndex {
		t.Errorf("error kind = %q, want malformed index", got)
	}
}
