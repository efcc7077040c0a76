package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var (
	googleFileRegex  = regexp.MustCompile(`/file/d/([A-Za-z0-9_-]+)`)
	googleSheetRegex = regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9_-]+)`)
)

// resolve turns a share link into a direct download URL. Short links are
// followed over the network; every other rewrite is purely syntactic.
func (f *Fetcher) resolve(ctx context.Context, u *url.URL) (*url.URL, error) {
	if f.isShortLink(u) {
		final, err := f.followRedirects(ctx, u)
		if err != nil {
			return nil, err
		}
		u = final
	}
	return rewrite(u), nil
}

func (f *Fetcher) isShortLink(u *url.URL) bool {
	for _, h := range f.config.ShortLinkHosts {
		if strings.EqualFold(u.Host, h) || strings.EqualFold(u.Hostname(), h) {
			return true
		}
	}
	return false
}

// followRedirects issues a GET and returns the URL the client landed on.
// The body is discarded unread.
func (f *Fetcher) followRedirects(ctx context.Context, u *url.URL) (*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve short link: %w", redactErr(err))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp.Request.URL, nil
}

// rewrite maps known share-link shapes to their download form.
func rewrite(u *url.URL) *url.URL {
	host := strings.ToLower(u.Hostname())
	out := *u

	switch {
	case host == "onedrive.live.com":
		switch {
		case strings.HasSuffix(u.Path, "/embed"):
			out.Path = strings.TrimSuffix(u.Path, "embed") + "download"
			out.RawPath = ""
		case !strings.Contains(u.Path, "download"):
			out.Path = strings.TrimSuffix(u.Path, "/") + "/download"
			out.RawPath = ""
		}

	case host == "drive.google.com":
		id := u.Query().Get("id")
		if m := googleFileRegex.FindStringSubmatch(u.Path); m != nil {
			id = m[1]
		}
		if id != "" {
			q := url.Values{"export": {"download"}, "id": {id}}
			return &url.URL{Scheme: "https", Host: "drive.google.com", Path: "/uc", RawQuery: q.Encode()}
		}

	case host == "docs.google.com":
		if m := googleSheetRegex.FindStringSubmatch(u.Path); m != nil {
			return &url.URL{
				Scheme:   "https",
				Host:     "docs.google.com",
				Path:     "/spreadsheets/d/" + m[1] + "/export",
				RawQuery: "format=xlsx",
			}
		}

	case strings.HasSuffix(host, ".sharepoint.com"):
		q := u.Query()
		q.Set("download", "1")
		out.RawQuery = q.Encode()
	}
	return &out
}
