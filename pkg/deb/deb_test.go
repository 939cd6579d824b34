// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package deb

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blakesmith/ar"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type tarEntry struct {
	header tar.Header
	body   []byte
}

func tarball(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		h := e.header
		if h.ModTime.IsZero() {
			h.ModTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		h.Size = int64(len(e.body))
		if err := tw.WriteHeader(&h); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(e.body); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func compressWith(t *testing.T, suffix string, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch suffix {
	case ".gz":
		w := gzip.NewWriter(&buf)
		w.Write(b)
		w.Close()
	case ".xz":
		w, err := xz.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(b)
		w.Close()
	case ".zst":
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(b)
		w.Close()
	case "":
		return b
	default:
		t.Fatalf("unknown suffix %q", suffix)
	}
	return buf.Bytes()
}

// buildDeb assembles a .deb on disk from control and data tar members.
func buildDeb(t *testing.T, dir, suffix string, controlTar, dataTar []byte) string {
	t.Helper()
	path := filepath.Join(dir, "test_1.0_amd64.deb")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := ar.NewWriter(f)
	if err := w.WriteGlobalHeader(); err != nil {
		t.Fatal(err)
	}
	write := func(name string, body []byte) {
		hdr := &ar.Header{Name: name, ModTime: time.Unix(0, 0), Mode: 0o644, Size: int64(len(body))}
		if err := w.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(body); err != nil {
			t.Fatal(err)
		}
	}
	write("debian-binary", []byte("2.0\n"))
	write("control.tar"+suffix, compressWith(t, suffix, controlTar))
	write("data.tar"+suffix, compressWith(t, suffix, dataTar))
	return path
}

const controlBody = `Package: hello
Version: 1.0-1
Architecture: amd64
Installed-Size: 12
Description: test package
`

func testControlTar(t *testing.T) []byte {
	return tarball(t, []tarEntry{
		{header: tar.Header{Name: "./control", Typeflag: tar.TypeReg, Mode: 0o644}, body: []byte(controlBody)},
		{header: tar.Header{Name: "./md5sums", Typeflag: tar.TypeReg, Mode: 0o644}, body: []byte("d41d8cd98f00b204e9800998ecf8427e  usr/bin/hello\n")},
	})
}

func testDataTar(t *testing.T) []byte {
	return tarball(t, []tarEntry{
		{header: tar.Header{Name: "./", Typeflag: tar.TypeDir, Mode: 0o755}},
		{header: tar.Header{Name: "./usr/", Typeflag: tar.TypeDir, Mode: 0o755}},
		{header: tar.Header{Name: "./usr/bin/", Typeflag: tar.TypeDir, Mode: 0o755}},
		{header: tar.Header{Name: "./usr/bin/hello", Typeflag: tar.TypeReg, Mode: 0o755}, body: []byte("#!/bin/sh\necho hello\n")},
		{header: tar.Header{Name: "./usr/bin/hi", Typeflag: tar.TypeSymlink, Mode: 0o777, Linkname: "hello"}},
	})
}

func TestReadControl(t *testing.T) {
	for _, suffix := range []string{".gz", ".xz", ".zst"} {
		t.Run("suffix"+suffix, func(t *testing.T) {
			path := buildDeb(t, t.TempDir(), suffix, testControlTar(t), testDataTar(t))
			ctl, err := ReadControl(path)
			if err != nil {
				t.Fatalf("ReadControl() failed: %v", err)
			}
			if got := ctl.Paragraph.Value("Package"); got != "hello" {
				t.Errorf("Package = %q, want hello", got)
			}
			if got := ctl.Paragraph.Value("Version"); got != "1.0-1" {
				t.Errorf("Version = %q, want 1.0-1", got)
			}
			if ctl.MD5sums == "" {
				t.Error("MD5sums empty, want content")
			}
		})
	}
}

func TestExtractData(t *testing.T) {
	root := t.TempDir()
	path := buildDeb(t, t.TempDir(), ".xz", testControlTar(t), testDataTar(t))
	files, err := ExtractData(path, root)
	if err != nil {
		t.Fatalf("ExtractData() failed: %v", err)
	}
	want := []string{"/.", "/usr", "/usr/bin", "/usr/bin/hello", "/usr/bin/hi"}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("file list mismatch (-want +got):\n%s", diff)
	}
	body, err := os.ReadFile(filepath.Join(root, "usr/bin/hello"))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "#!/bin/sh\necho hello\n" {
		t.Error("extracted file content differs")
	}
	info, err := os.Stat(filepath.Join(root, "usr/bin/hello"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %o, want 755", info.Mode().Perm())
	}
	link, err := os.Readlink(filepath.Join(root, "usr/bin/hi"))
	if err != nil {
		t.Fatal(err)
	}
	if link != "hello" {
		t.Errorf("symlink target = %q, want hello", link)
	}
}

func TestExtractDataHardLink(t *testing.T) {
	root := t.TempDir()
	data := tarball(t, []tarEntry{
		{header: tar.Header{Name: "./bin/", Typeflag: tar.TypeDir, Mode: 0o755}},
		{header: tar.Header{Name: "./bin/gzip", Typeflag: tar.TypeReg, Mode: 0o755}, body: []byte("binary")},
		{header: tar.Header{Name: "./bin/gunzip", Typeflag: tar.TypeLink, Mode: 0o755, Linkname: "./bin/gzip"}},
	})
	path := buildDeb(t, t.TempDir(), ".gz", testControlTar(t), data)
	if _, err := ExtractData(path, root); err != nil {
		t.Fatalf("ExtractData() failed: %v", err)
	}
	a, err := os.Stat(filepath.Join(root, "bin/gzip"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.Stat(filepath.Join(root, "bin/gunzip"))
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(a, b) {
		t.Error("hard link does not share inode with its target")
	}
}

func TestExtractDataRejectsEscapes(t *testing.T) {
	for name, escape := range map[string]tarEntry{
		"dotdot":   {header: tar.Header{Name: "../outside", Typeflag: tar.TypeReg, Mode: 0o644}, body: []byte("x")},
		"absolute": {header: tar.Header{Name: "/etc/passwd", Typeflag: tar.TypeReg, Mode: 0o644}, body: []byte("x")},
		"nested":   {header: tar.Header{Name: "./usr/../../outside", Typeflag: tar.TypeReg, Mode: 0o644}, body: []byte("x")},
	} {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			data := tarball(t, []tarEntry{escape})
			path := buildDeb(t, t.TempDir(), ".gz", testControlTar(t), data)
			if _, err := ExtractData(path, root); err == nil {
				t.Fatal("ExtractData() accepted a path escape")
			}
		})
	}
}

func TestReadControlMissingMember(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.deb")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := ar.NewWriter(f)
	if err := w.WriteGlobalHeader(); err != nil {
		t.Fatal(err)
	}
	hdr := &ar.Header{Name: "debian-binary", ModTime: time.Unix(0, 0), Mode: 0o644, Size: 4}
	if err := w.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("2.0\n"))
	f.Close()
	if _, err := ReadControl(path); err == nil {
		t.Fatal("ReadControl() succeeded on a .deb without control.tar")
	}
}
