// Package youtube resolves play queries to track metadata. Plain text goes
// through a results-page search first; URLs and search hits alike are then
// described via the YouTube video metadata endpoint.
package youtube

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	ytdl "github.com/kkdai/youtube/v2"

	"melodash/internal/audio"
)

var youtubeURLPattern = regexp.MustCompile(`^https?://(www\.|m\.|music\.)?(youtube\.com|youtu\.be)/`)

type Source struct {
	search *searchResolver
	client *ytdl.Client
}

func NewSource() *Source {
	return &Source{
		search: newSearchResolver(),
		client: &ytdl.Client{
			HTTPClient: &http.Client{Timeout: 15 * time.Second},
		},
	}
}

// Resolve turns a query into playable track metadata. An empty result slice
// never comes back without an error.
func (s *Source) Resolve(ctx context.Context, query string) ([]audio.Track, error) {
	query = strings.TrimSpace(query)

	videoURL := query
	if !youtubeURLPattern.MatchString(query) {
		found, err := s.search.firstVideoURL(ctx, query)
		if err != nil {
			return nil, err
		}
		videoURL = found
	}

	video, err := s.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, err
	}

	track := audio.Track{
		Title:    video.Title,
		Author:   video.Author,
		URI:      "https://www.youtube.com/watch?v=" + video.ID,
		Duration: video.Duration.Milliseconds(),
	}
	if len(video.Thumbnails) > 0 {
		track.Thumbnail = video.Thumbnails[0].URL
	}
	return []audio.Track{track}, nil
}
