package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

var (
	videoPattern    = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]+)(?:\\u0026list=([a-zA-Z0-9_-]+))?[^"]*`)
	ErrNoVideoMatch = errors.New("no video found for the given title")
)

// searchResolver scrapes the YouTube results page for the first video hit.
// The search endpoint has no unauthenticated API; the watch-URL pattern in
// the page markup has been stable for years.
type searchResolver struct {
	baseURL string
	client  *http.Client
}

func newSearchResolver() *searchResolver {
	return &searchResolver{
		baseURL: "https://www.youtube.com",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (r *searchResolver) firstVideoURL(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", r.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("YouTube search failed with status code %v", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	matches := videoPattern.FindStringSubmatch(string(body))
	if len(matches) > 1 {
		return fmt.Sprintf("%s/watch?v=%s", r.baseURL, matches[1]), nil
	}

	return "", ErrNoVideoMatch
}
