// Package download fetches browser and driver archives into a local cache directory and unpacks
// them.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"
)

const completeMarker = ".complete"

// Cache stores unpacked downloads under Dir, one subdirectory per entry. An entry is only used once
// it has been fully extracted.
type Cache struct {
	Dir    string
	Client *http.Client
	Logger *zap.Logger
	// Attempts is the number of download attempts. Defaults to 3.
	Attempts uint
	// RetryDelay defaults to one second.
	RetryDelay time.Duration

	lock sync.Mutex
}

// Path returns the directory of a cache entry, whether or not it exists.
func (c *Cache) Path(name string) string {
	return filepath.Join(c.Dir, name)
}

// Has reports whether the entry has been completely extracted.
func (c *Cache) Has(name string) bool {
	_, err := os.Stat(filepath.Join(c.Path(name), completeMarker))
	return err == nil
}

// Ensure returns the directory of the named entry, downloading and extracting the archive at url
// first if the entry is missing.
func (c *Cache) Ensure(ctx context.Context, name, url string) (string, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	dir := c.Path(name)
	if c.Has(name) {
		return dir, nil
	}
	format, err := FormatOf(url)
	if err != nil {
		return "", err
	}
	c.logger().Info("Downloading", zap.String("entry", name), zap.String("url", url))

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", err
	}
	archive, err := os.CreateTemp(c.Dir, name+"-*"+format.Extension())
	if err != nil {
		return "", err
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()
	if err := c.fetch(ctx, url, archive); err != nil {
		return "", fmt.Errorf("downloading %s: %w", url, err)
	}

	staging, err := os.MkdirTemp(c.Dir, name+"-extract-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(staging)
	if err := ExtractFile(archive.Name(), format, staging); err != nil {
		return "", fmt.Errorf("extracting %s: %w", url, err)
	}
	if err := os.WriteFile(filepath.Join(staging, completeMarker), nil, 0o644); err != nil {
		return "", err
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := os.Rename(staging, dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (c *Cache) fetch(ctx context.Context, url string, dest *os.File) error {
	attempts := c.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := c.RetryDelay
	if delay == 0 {
		delay = time.Second
	}
	return retry.New(
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger().Debug("Retrying download", zap.String("url", url), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	).Do(func() error {
		if _, err := dest.Seek(0, io.SeekStart); err != nil {
			return retry.Unrecoverable(err)
		}
		if err := dest.Truncate(0); err != nil {
			return retry.Unrecoverable(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		resp, err := c.client().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected response status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Unrecoverable(err)
			}
			return err
		}
		_, err = io.Copy(dest, resp.Body)
		return err
	})
}

func (c *Cache) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *Cache) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// ErrUnsupportedFormat is returned for archives whose type cannot be told from their name.
var ErrUnsupportedFormat = errors.New("unsupported archive format")
