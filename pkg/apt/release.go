// Copyright 2025 The aoscbootstrap Authors
// SPDX-License-Identifier: Apache-2.0

package apt

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aosc-dev/aoscbootstrap/internal/errkind"
	"github.com/aosc-dev/aoscbootstrap/pkg/apt/control"
	"github.com/pkg/errors"
)

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errkind.Wrap(errkind.Transport, err, url)
	}
	return resp, nil
}

// getBody fetches url and returns the response body, mapping non-2xx
// statuses onto the error taxonomy.
func (c *Client) getBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, errkind.Wrap(errkind.Transport, errNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errkind.Wrap(errkind.Transport, errors.New(resp.Status), url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errkind.Wrap(errkind.Transport, err, url)
	}
	return body, nil
}

var errNotFound = errors.New("404 Not Found")

// IsNotFound reports whether err represents an HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

// FetchRelease downloads and verifies the top-level index of repo:
// dists/<branch>/InRelease first, falling back to the detached
// Release + Release.gpg pair on 404.
func (c *Client) FetchRelease(ctx context.Context, repo Repository) (*ReleaseFile, error) {
	inReleaseURL := repo.DistURL("InRelease")
	signed, err := c.getBody(ctx, inReleaseURL)
	var body []byte
	switch {
	case err == nil:
		body, err = c.Verifier.VerifyCleartext(signed)
		if err != nil {
			return nil, errkind.Wrap(errkind.Verification, err, inReleaseURL)
		}
	case IsNotFound(err):
		releaseURL := repo.DistURL("Release")
		message, rerr := c.getBody(ctx, releaseURL)
		if rerr != nil {
			if IsNotFound(rerr) {
				return nil, errkind.Wrap(errkind.Transport,
					errors.Errorf("neither %s nor %s exists", inReleaseURL, releaseURL), repo.MirrorURL)
			}
			return nil, rerr
		}
		sig, serr := c.getBody(ctx, releaseURL+".gpg")
		if serr != nil {
			return nil, serr
		}
		if verr := c.Verifier.VerifyDetached(message, sig); verr != nil {
			return nil, errkind.Wrap(errkind.Verification, verr, releaseURL)
		}
		body = message
	default:
		return nil, err
	}
	rel, err := parseRelease(body)
	if err != nil {
		return nil, errkind.Wrap(errkind.MalformedIndex, err, inReleaseURL)
	}
	if !rel.ValidUntil.IsZero() && c.now().After(rel.ValidUntil) {
		return nil, errkind.Wrap(errkind.Verification,
			errors.Errorf("release expired %s", rel.ValidUntil.Format(time.RFC1123)), inReleaseURL)
	}
	return rel, nil
}

func parseRelease(body []byte) (*ReleaseFile, error) {
	paragraphs, err := control.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if len(paragraphs) == 0 {
		return nil, errors.New("empty release file")
	}
	p := paragraphs[0]
	rel := &ReleaseFile{
		Suite:         p.Value("Suite"),
		Codename:      p.Value("Codename"),
		Components:    strings.Fields(p.Value("Components")),
		Architectures: strings.Fields(p.Value("Architectures")),
		Date:          p.Value("Date"),
		Entries:       map[string]FileEntry{},
	}
	if until := p.Value("Valid-Until"); until != "" {
		t, err := time.Parse(time.RFC1123, until)
		if err != nil {
			t, err = time.Parse(time.RFC1123Z, until)
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing Valid-Until")
		}
		rel.ValidUntil = t
	}
	sha256, ok := p.Get("SHA256")
	if !ok {
		return nil, errors.New("release file carries no SHA256 table")
	}
	for _, line := range strings.Split(sha256, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, errors.Errorf("malformed SHA256 row %q", line)
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed size in SHA256 row %q", line)
		}
		rel.Entries[fields[2]] = FileEntry{Size: size, SHA256: fields[0]}
	}
	return rel, nil
}
