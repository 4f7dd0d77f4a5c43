// Package catalog reads the list of demonstration test pages that suites can exercise.
package catalog

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"go.uber.org/zap"
)

// PageTest is one demonstration page of the catalog.
type PageTest struct {
	URL   string
	Title string
}

var testLinkPattern = regexp.MustCompile(`(?m)"test-link" href="(.*?)"[\S\s]*?>(?:<h3>)?(.*?)<`)

// Fetcher downloads and parses the catalog.
type Fetcher struct {
	// Client is used for secure requests. Defaults to http.DefaultClient.
	Client *http.Client
	Logger *zap.Logger
}

// Fetch returns the pages listed at catalogURL, in document order. The catalog is optional: if it
// cannot be retrieved, a warning is logged and the result is empty.
func (f Fetcher) Fetch(ctx context.Context, catalogURL string, insecure bool) []PageTest {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	body, err := f.get(ctx, catalogURL, insecure)
	if err != nil {
		logger.Warn("Test pages not parsed", zap.String("url", catalogURL), zap.Error(err))
		return nil
	}
	tests, err := Parse(catalogURL, body, logger)
	if err != nil {
		logger.Warn("Test pages not parsed", zap.String("url", catalogURL), zap.Error(err))
		return nil
	}
	return tests
}

func (f Fetcher) get(ctx context.Context, catalogURL string, insecure bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, catalogURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client(insecure).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected response status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f Fetcher) client(insecure bool) *http.Client {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	if !insecure {
		return client
	}
	var transport *http.Transport
	if t, ok := client.Transport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	c := *client
	c.Transport = transport
	return &c
}

// Parse extracts the test links of a catalog page. Links are resolved against baseURL; a link that
// is not a valid URL reference is logged and left out.
func Parse(baseURL string, body []byte, logger *zap.Logger) ([]PageTest, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	var tests []PageTest
	for _, m := range testLinkPattern.FindAllSubmatch(body, -1) {
		ref, err := url.Parse(string(m[1]))
		if err != nil {
			logger.Warn("Skipping invalid test link", zap.ByteString("href", m[1]), zap.Error(err))
			continue
		}
		tests = append(tests, PageTest{
			URL:   base.ResolveReference(ref).String(),
			Title: string(m[2]),
		})
	}
	return tests, nil
}
