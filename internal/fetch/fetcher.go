// Package fetch streams remote media assets to local storage.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Media payloads can be large, so writes happen in bounded chunks
// rather than buffering whole bodies in memory.
const copyChunkSize = 64 * 1024

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type Config struct {
	TimeoutSeconds int `yaml:"timeout_seconds" env:"FETCH_TIMEOUT_SECONDS" env-default:"120"`
}

type Fetcher struct {
	http *http.Client
}

func NewFetcher(config Config) *Fetcher {
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Fetcher{
		http: &http.Client{Timeout: timeout},
	}
}

// Fetch performs a streamed GET of the remote URL, writing the body
// to the destination path in chunks. The destination is truncated if
// it already exists, so retrying with the same arguments simply
// overwrites the previous download. A partially written file is
// removed when the transfer fails midway.
func (fetcher *Fetcher) Fetch(ctx context.Context, remoteURL string, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create fetch request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := fetcher.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", remoteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to fetch %s: unexpected status %d", remoteURL, resp.StatusCode)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination %s: %w", destPath, err)
	}

	if _, err := io.CopyBuffer(file, resp.Body, make([]byte, copyChunkSize)); err != nil {
		file.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}

	if err := file.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to finalise %s: %w", destPath, err)
	}

	return nil
}
