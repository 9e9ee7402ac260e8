package decode

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"time"
)

// headerAllowlist names the response headers recorded in conversion metadata.
var headerAllowlist = []string{"Content-Type", "Content-Length", "Last-Modified", "ETag", "Server"}

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FetchResult holds a fetched document staged in a temp file plus the HTTP
// metadata that becomes part of the conversion frontmatter.
type FetchResult struct {
	URL          string
	TempPath     string
	SafeFilename string
	ContentType  string
	HTTPStatus   int
	Headers      map[string]string
}

// Fetcher downloads URL inputs to temp files for stage 1.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// NewFetcher creates a fetcher with the given timeout and body-size cap.
func NewFetcher(timeout time.Duration, userAgent string, maxBodyBytes int64) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		userAgent:    userAgent,
		maxBodyBytes: maxBodyBytes,
	}
}

// Fetch downloads the URL to a temp file and returns it with HTTP metadata.
// The caller owns the temp file and removes it after stage 1.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	name := SafeFilename(rawURL, resp.Header.Get("Content-Type"))

	tmp, err := os.CreateTemp("", "corpus-fetch-*-"+name)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmp, io.LimitReader(resp.Body, f.maxBodyBytes+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("download body: %w", err)
	}
	if written > f.maxBodyBytes {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", rawURL, f.maxBodyBytes)
	}

	headers := make(map[string]string, len(headerAllowlist))
	for _, h := range headerAllowlist {
		if v := resp.Header.Get(h); v != "" {
			headers[h] = v
		}
	}

	return &FetchResult{
		URL:          rawURL,
		TempPath:     tmp.Name(),
		SafeFilename: name,
		ContentType:  resp.Header.Get("Content-Type"),
		HTTPStatus:   resp.StatusCode,
		Headers:      headers,
	}, nil
}

// SafeFilename derives a filesystem-safe name for a URL, falling back to the
// content type for an extension when the path has none.
func SafeFilename(rawURL, contentType string) string {
	name := "download"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		} else if u.Host != "" {
			name = u.Host
		}
	}
	name = unsafeFilenameRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "download"
	}
	if path.Ext(name) == "" {
		name += extensionFor(contentType)
	}
	return name
}

// extensionFor maps a Content-Type to a decoder extension.
func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".txt"
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return ".html"
	case "text/markdown":
		return ".md"
	case "application/json":
		return ".json"
	case "text/csv":
		return ".csv"
	case "application/xml", "text/xml":
		return ".xml"
	case "application/pdf":
		return ".pdf"
	default:
		return ".txt"
	}
}
