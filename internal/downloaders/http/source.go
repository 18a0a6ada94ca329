package mtdhttp

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tanq16/mtd/internal/mtd"
	"github.com/tanq16/mtd/internal/utils"
)

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

// Source reads a remote file over HTTP range requests.
type Source struct {
	client *utils.HTTPClient
	url    string
}

func NewSource(client *utils.HTTPClient, link string) *Source {
	return &Source{client: client, url: link}
}

// Stat probes the file with a HEAD request. A missing or non-numeric
// Content-Length is reported as size -1.
func (s *Source) Stat(ctx context.Context) (*mtd.RemoteInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error checking URL: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &mtd.StatusError{Code: resp.StatusCode}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		s.url = resp.Request.URL.String()
	}
	return &mtd.RemoteInfo{
		Size:     parseContentLength(resp.Header.Get("Content-Length")),
		ETag:     resp.Header.Get("ETag"),
		FileName: fileNameFromHeader(resp.Header.Get("Content-Disposition")),
	}, nil
}

// Fetch requests bytes=start-end. Servers that answer with the whole body
// are only accepted when that body is exactly the requested range.
func (s *Source) Fetch(ctx context.Context, start, end int64) (*mtd.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusOK && start == 0 && resp.ContentLength == end+1:
	case resp.StatusCode == http.StatusOK:
		drain(resp.Body)
		return nil, mtd.ErrRangeNotSupported
	default:
		drain(resp.Body)
		return nil, &mtd.StatusError{Code: resp.StatusCode}
	}
	return &mtd.Response{
		Body:          resp.Body,
		Status:        resp.StatusCode,
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
	}, nil
}

func drain(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 4096))
	body.Close()
}

func parseContentLength(value string) int64 {
	size, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || size < 0 {
		return -1
	}
	return size
}

func fileNameFromHeader(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	if fn, ok := params["filename"]; ok && fn != "" {
		return filenameRegex.ReplaceAllString(fn, "_")
	}
	if fn, ok := params["filename*"]; ok && strings.HasPrefix(fn, "UTF-8''") {
		unescaped, _ := url.PathUnescape(strings.TrimPrefix(fn, "UTF-8''"))
		return filenameRegex.ReplaceAllString(unescaped, "_")
	}
	return ""
}
