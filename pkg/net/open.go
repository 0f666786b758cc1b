package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
)

var ErrorURLNotFound = errors.New("URL not found")

// IsURL reports whether src is an http or https URL rather than a local path.
func IsURL(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return (s == "http" || s == "https") && u.Host != ""
}

// Open returns a reader for src, fetching it when src is a URL and opening
// it from disk otherwise. The caller closes the reader.
func Open(ctx context.Context, src string) (io.ReadCloser, error) {
	if src == "" {
		return nil, errors.New("source required")
	}
	if !IsURL(src) {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("error opening %s: %w", src, err)
		}
		return f, nil
	}

	resp, err := getResp(ctx, src)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrorURLNotFound, src)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("error downloading %s (status: %d - %s)", src, resp.StatusCode, resp.Status)
	}

	slog.Debug("fetched remote source", "url", src, "length", resp.ContentLength)
	return resp.Body, nil
}

func getResp(ctx context.Context, src string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	req.Header.Set("User-Agent", clientAgent)

	resp, err := GetHTTPClient().Do(req) //nolint:gosec // URL is the user's own input
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", src, err)
	}
	return resp, nil
}
