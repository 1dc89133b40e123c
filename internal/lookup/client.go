package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultEndpoint = "https://www.tikwm.com/api/"

	// The lookup service rejects requests without a browser-style
	// identity, so every outbound call carries this agent string.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

type Config struct {
	Endpoint       string `yaml:"endpoint" env:"LOOKUP_ENDPOINT" env-default:"https://www.tikwm.com/api/"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"LOOKUP_TIMEOUT_SECONDS" env-default:"30"`
}

// Client resolves source URLs against the remote lookup service. A
// single attempt is made per call; retrying is left to the caller.
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(config Config) *Client {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Resolve posts the source URL to the lookup service and returns the
// parsed media record. Any network failure, non-OK status, service
// failure code, or malformed payload collapses to an error with no
// partial result.
func (client *Client) Resolve(ctx context.Context, sourceURL string) (*MediaInfo, error) {
	form := url.Values{"url": {sourceURL}, "hd": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &LookupFailedError{reason: err.Error()}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.http.Do(req)
	if err != nil {
		return nil, &LookupFailedError{reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LookupFailedError{reason: fmt.Sprintf("failed to read response body: %s", err.Error())}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &LookupFailedError{reason: fmt.Sprintf("lookup service returned HTTP %d", resp.StatusCode)}
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &BadPayloadError{reason: fmt.Sprintf("response JSON could not be unmarshalled: %s", err.Error())}
	}

	if raw.Code != 0 || raw.Data == nil {
		return nil, &NoDataError{code: raw.Code, message: raw.Msg}
	}

	return parseInfo(raw.Data)
}

type (
	rawResponse struct {
		Code int      `json:"code"`
		Msg  string   `json:"msg"`
		Data *rawData `json:"data"`
	}

	rawData struct {
		ID        json.Number   `json:"id"`
		Title     string        `json:"title"`
		Play      string        `json:"play"`
		HDPlay    string        `json:"hdplay"`
		Music     string        `json:"music"`
		MusicInfo *rawMusicInfo `json:"music_info"`
		Images    []string      `json:"images"`
		Author    rawAuthor     `json:"author"`
	}

	rawAuthor struct {
		UniqueID string `json:"unique_id"`
	}

	rawMusicInfo struct {
		Title string `json:"title"`
	}
)

// parseInfo converts the raw lookup payload into a MediaInfo,
// failing closed: a payload missing the content identifier is
// rejected outright rather than passed downstream half-populated.
func parseInfo(data *rawData) (*MediaInfo, error) {
	id := data.ID.String()
	if id == "" {
		return nil, &BadPayloadError{reason: "payload is missing the content identifier"}
	}

	author := data.Author.UniqueID
	if author == "" {
		author = "unknown"
	}

	title := truncateTitle(data.Title)
	if title == "" {
		if len(data.Images) > 0 {
			title = defaultSlideshowTitle
		} else {
			title = defaultVideoTitle
		}
	}

	info := &MediaInfo{
		ID:        id,
		Title:     title,
		Author:    author,
		PlayURL:   data.Play,
		HDPlayURL: data.HDPlay,
		MusicURL:  data.Music,
		Images:    data.Images,
	}

	if data.MusicInfo != nil {
		info.MusicTitle = data.MusicInfo.Title
	}

	return info, nil
}

type (
	// LookupFailedError covers transport-level failures: the lookup
	// service was unreachable, timed out, or answered with a non-OK
	// HTTP status.
	LookupFailedError struct{ reason string }

	// NoDataError indicates the service answered but reported a
	// failure code or omitted the data payload.
	NoDataError struct {
		code    int
		message string
	}

	// BadPayloadError indicates the response could not be parsed
	// into a usable media record.
	BadPayloadError struct{ reason string }
)

func (err *LookupFailedError) Error() string {
	return fmt.Sprintf("lookup request failed: %s", err.reason)
}

func (err *NoDataError) Error() string {
	if err.message != "" {
		return fmt.Sprintf("lookup service reported failure (code %d): %s", err.code, err.message)
	}

	return fmt.Sprintf("lookup service reported failure (code %d)", err.code)
}

func (err *BadPayloadError) Error() string {
	return fmt.Sprintf("lookup response unusable: %s", err.reason)
}
