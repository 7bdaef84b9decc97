// Package locator discovers the latest daily price monitoring PDF on the
// source agency's index page.
package locator

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// landmarkHeading is the text fragment identifying the price bulletin table
// on the index page. The table lists documents newest-first, so the first
// row's link is the latest bulletin.
const landmarkHeading = "daily price monitoring"

// Options configures the index page client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// RatePerSec throttles requests to the agency site. Zero disables
	// throttling.
	RatePerSec float64
}

// Locator fetches agency index pages and finds the newest PDF link.
type Locator struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// New creates a Locator.
func New(opts Options) *Locator {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return &Locator{
		client:    &http.Client{Timeout: timeout},
		limiter:   limiter,
		userAgent: opts.UserAgent,
	}
}

// LatestDocumentURL returns the absolute URL of the newest bulletin PDF
// linked from the index page, or "" when no document can be located.
//
// Every failure mode here (timeout, non-2xx, structural drift, missing
// link) means "no bulletin today" — a routine condition, so the error
// return stays nil and the reason is logged.
func (l *Locator) LatestDocumentURL(ctx context.Context, indexURL string) (string, error) {
	log := zap.L().With(
		zap.String("component", "locator"),
		zap.String("index_url", indexURL),
	)

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		log.Warn("locator: bad index url", zap.Error(err))
		return "", nil
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		log.Warn("locator: index fetch failed", zap.Error(err))
		return "", nil
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("locator: index fetch non-2xx", zap.Int("status", resp.StatusCode))
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		log.Warn("locator: parse index page", zap.Error(err))
		return "", nil
	}

	href := findLatestLink(doc)
	if href == "" {
		log.Info("locator: no bulletin link found on index page")
		return "", nil
	}

	abs := resolveURL(indexURL, href)
	if abs == "" {
		log.Warn("locator: unresolvable bulletin link", zap.String("href", href))
		return "", nil
	}

	log.Info("locator: found bulletin", zap.String("pdf_url", abs))
	return abs, nil
}

// findLatestLink walks the DOM for the landmark heading, then takes the
// first PDF link in the table that follows it. First row wins: the source
// lists newest-first.
func findLatestLink(doc *goquery.Document) string {
	var href string

	doc.Find("h1, h2, h3, h4").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(heading.Text()))
		if !strings.Contains(text, landmarkHeading) {
			return true
		}

		table := heading.NextAllFiltered("table").First()
		if table.Length() == 0 {
			// Some layouts wrap the table in a sibling div.
			table = heading.NextAll().Find("table").First()
		}
		if table.Length() == 0 {
			return true
		}

		row := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Find("a[href]").Length() > 0
		}).First()

		row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			h, ok := a.Attr("href")
			if ok && strings.Contains(strings.ToLower(h), ".pdf") {
				href = h
				return false
			}
			return true
		})
		return href == ""
	})

	return href
}

// resolveURL makes href absolute relative to base. Returns "" when either
// side fails to parse.
func resolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}
