// Package testpages is a suite that opens every page of the test page catalog with the extension
// active and checks that it loads.
package testpages

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adblockplus/extension-contract-tests/catalog"
	"github.com/adblockplus/extension-contract-tests/e2etests"
)

// Name is the registry name of the suite.
const Name = "testpages"

const readyStateScript = "return document.readyState;"

// LoadTimeout bounds how long a page may take to finish loading.
var LoadTimeout = 10 * time.Second

// Define registers one case per catalog page.
func Define(s *e2etests.Scope) {
	s.It("test pages catalog is available", func(t *e2etests.T) {
		if len(t.PageTests()) == 0 {
			t.Skip(fmt.Sprintf("no test pages found at %s", t.TestPagesURL()))
		}
	})
	pages := s.PageTests()
	names := caseNames(pages)
	for i, page := range pages {
		page := page
		s.It(names[i], func(t *e2etests.T) {
			t.Logger().Debug("Opening test page", zap.String("url", page.URL))
			require.NoError(t, openPage(t.Ctx(), t, page))
		})
	}
}

// caseNames names each case after its page title. Titles used by more than one page get the page's
// URL path appended so that every case has its own ID.
func caseNames(pages []catalog.PageTest) []string {
	count := make(map[string]int)
	for _, p := range pages {
		count[p.Title]++
	}
	names := make([]string, len(pages))
	for i, p := range pages {
		names[i] = p.Title
		if count[p.Title] > 1 {
			path := p.URL
			if u, err := url.Parse(p.URL); err == nil && u.Path != "" {
				path = u.Path
			}
			names[i] = fmt.Sprintf("%s (%s)", p.Title, path)
		}
	}
	return names
}

func openPage(ctx context.Context, t *e2etests.T, page catalog.PageTest) error {
	session := t.Session()
	if err := session.Navigate(ctx, page.URL); err != nil {
		return fmt.Errorf("opening %s: %w", page.URL, err)
	}
	ctx, cancel := context.WithTimeout(ctx, LoadTimeout)
	defer cancel()
	return retry.New(
		retry.Attempts(0),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		state, err := session.ExecuteScript(ctx, readyStateScript)
		if err != nil {
			return err
		}
		if state != "complete" {
			return fmt.Errorf("%s is still loading (readyState %v)", page.URL, state)
		}
		return nil
	})
}
