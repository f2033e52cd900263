package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSearchTimeout = 10 * time.Second

	defaultJikanURL  = "https://api.jikan.moe/v4"
	defaultTVMazeURL = "https://api.tvmaze.com"
	defaultITunesURL = "https://itunes.apple.com"

	jikanMaxLimit  = 10
	itunesMaxLimit = 20

	userAgent = "nebuladiary/1.0"
)

// Provider names reported in SearchResult.Source.
const (
	SourceJikan  = "jikan"
	SourceTVMaze = "tvmaze"
	SourceITunes = "itunes"
)

// SearchConfig configures the upstream providers.
type SearchConfig struct {
	Timeout   time.Duration
	JikanURL  string
	TVMazeURL string
	ITunesURL string
}

// Searcher proxies free-text searches to the provider matching a media
// type and normalizes the results. It keeps no state between calls.
type Searcher struct {
	client    *http.Client
	jikanURL  string
	tvmazeURL string
	itunesURL string
}

// NewSearcher creates a Searcher; zero fields of cfg take defaults.
func NewSearcher(cfg SearchConfig) *Searcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSearchTimeout
	}
	if cfg.JikanURL == "" {
		cfg.JikanURL = defaultJikanURL
	}
	if cfg.TVMazeURL == "" {
		cfg.TVMazeURL = defaultTVMazeURL
	}
	if cfg.ITunesURL == "" {
		cfg.ITunesURL = defaultITunesURL
	}
	return &Searcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		jikanURL:  strings.TrimRight(cfg.JikanURL, "/"),
		tvmazeURL: strings.TrimRight(cfg.TVMazeURL, "/"),
		itunesURL: strings.TrimRight(cfg.ITunesURL, "/"),
	}
}

// Search queries exactly one provider, chosen by mediaType. A blank query
// returns no results without any upstream call. Failures are reported as
// *UpstreamSearchError.
func (s *Searcher) Search(ctx context.Context, query, mediaType string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit < 1 {
		return []SearchResult{}, nil
	}

	var (
		results []SearchResult
		source  string
		err     error
	)
	switch mediaType {
	case MediaAnime:
		source = SourceJikan
		results, err = s.searchAnime(ctx, query, limit)
	case MediaSeries:
		source = SourceTVMaze
		results, err = s.searchSeries(ctx, query, limit)
	case MediaMovie:
		source = SourceITunes
		results, err = s.searchMovies(ctx, query, limit)
	default:
		return nil, &ValidationError{Fields: []FieldError{{Field: "media_type", Message: "unsupported media type " + strconv.Quote(mediaType)}}}
	}
	if err != nil {
		return nil, &UpstreamSearchError{Provider: source, Err: err}
	}
	return results, nil
}

type jikanResponse struct {
	Data []struct {
		MalID *int64  `json:"mal_id"`
		Title string  `json:"title"`
		Year  *int    `json:"year"`
		Aired *struct {
			Prop struct {
				From struct {
					Year *int `json:"year"`
				} `json:"from"`
			} `json:"prop"`
		} `json:"aired"`
		Images struct {
			JPG struct {
				LargeImageURL *string `json:"large_image_url"`
				ImageURL      *string `json:"image_url"`
			} `json:"jpg"`
		} `json:"images"`
	} `json:"data"`
}

func (s *Searcher) searchAnime(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(min(limit, jikanMaxLimit)))
	params.Set("sfw", "true")

	var resp jikanResponse
	if err := s.getJSON(ctx, s.jikanURL+"/anime", params, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, min(limit, len(resp.Data)))
	for _, item := range head(resp.Data, limit) {
		r := SearchResult{
			Title:      item.Title,
			ExternalID: idString(item.MalID),
			Source:     SourceJikan,
			MediaType:  MediaAnime,
		}
		switch {
		case item.Year != nil && *item.Year != 0:
			r.Year = *item.Year
		case item.Aired != nil && item.Aired.Prop.From.Year != nil && *item.Aired.Prop.From.Year != 0:
			r.Year = *item.Aired.Prop.From.Year
		}
		r.Image = firstNonEmpty(item.Images.JPG.LargeImageURL, item.Images.JPG.ImageURL)
		results = append(results, r)
	}
	return results, nil
}

type tvmazeResult struct {
	Show struct {
		ID        *int64  `json:"id"`
		Name      string  `json:"name"`
		Premiered *string `json:"premiered"`
		Image     *struct {
			Original *string `json:"original"`
			Medium   *string `json:"medium"`
		} `json:"image"`
	} `json:"show"`
}

func (s *Searcher) searchSeries(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)

	var resp []tvmazeResult
	if err := s.getJSON(ctx, s.tvmazeURL+"/search/shows", params, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, min(limit, len(resp)))
	for _, item := range head(resp, limit) {
		show := item.Show
		r := SearchResult{
			Title:      show.Name,
			ExternalID: idString(show.ID),
			Source:     SourceTVMaze,
			MediaType:  MediaSeries,
		}
		if y := yearPrefix(show.Premiered); y != "" {
			r.Year = y
		}
		if show.Image != nil {
			r.Image = firstNonEmpty(show.Image.Original, show.Image.Medium)
		}
		results = append(results, r)
	}
	return results, nil
}

type itunesResponse struct {
	Results []struct {
		TrackID       *int64  `json:"trackId"`
		TrackName     string  `json:"trackName"`
		ReleaseDate   *string `json:"releaseDate"`
		ArtworkURL100 *string `json:"artworkUrl100"`
	} `json:"results"`
}

func (s *Searcher) searchMovies(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("term", query)
	params.Set("media", "movie")
	params.Set("limit", strconv.Itoa(min(limit, itunesMaxLimit)))

	var resp itunesResponse
	if err := s.getJSON(ctx, s.itunesURL+"/search", params, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, min(limit, len(resp.Results)))
	for _, item := range head(resp.Results, limit) {
		r := SearchResult{
			Title:      item.TrackName,
			Image:      firstNonEmpty(item.ArtworkURL100),
			ExternalID: idString(item.TrackID),
			Source:     SourceITunes,
			MediaType:  MediaMovie,
		}
		if y := yearPrefix(item.ReleaseDate); y != "" {
			r.Year = y
		}
		results = append(results, r)
	}
	return results, nil
}

// statusError reports a non-2xx upstream response.
type statusError struct {
	StatusCode int
	URL        string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%d %s for url: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

func (s *Searcher) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	u := endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{StatusCode: resp.StatusCode, URL: u}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func idString(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

// yearPrefix returns the first four characters of a date, or "".
func yearPrefix(date *string) string {
	if date == nil {
		return ""
	}
	return truncate(*date, 4)
}

func firstNonEmpty(candidates ...*string) *string {
	for _, c := range candidates {
		if c != nil && *c != "" {
			v := *c
			return &v
		}
	}
	return nil
}
