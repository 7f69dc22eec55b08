// Package fetch performs resilient page retrieval: every logical "get and
// parse a page" operation lives here, and it is the sole point where network
// unreliability is absorbed.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/geckyzz/nyaa-comments/internal/clock"
	"github.com/geckyzz/nyaa-comments/internal/config"
)

// Fetcher retrieves and parses pages sequentially. It enforces a politeness
// delay before every request and retries transient failures with exponential
// backoff (2^attempt seconds). Exhausting retries yields a terminal error for
// that URL only; the caller must treat it as "no data this round", never as
// "item deleted".
type Fetcher struct {
	client     *resty.Client
	maxRetries int
	delay      time.Duration
	sleeper    clock.Sleeper
	logger     *zap.Logger
}

// New builds a Fetcher from HTTP configuration. When cfg.CookiesPath names a
// non-empty Netscape-format cookie file, its cookies are installed in the
// client's jar; a missing or empty file is ignored.
func New(cfg config.HTTPConfig, sleeper clock.Sleeper, logger *zap.Logger) (*Fetcher, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("build cookie jar: %w", err)
	}
	if cfg.CookiesPath != "" {
		loadCookieFile(cfg.CookiesPath, jar, logger)
	}

	client := resty.New().
		SetTimeout(cfg.Timeout()).
		SetHeader("User-Agent", cfg.UserAgent).
		SetCookieJar(jar)

	return &Fetcher{
		client:     client,
		maxRetries: cfg.MaxRetries,
		delay:      cfg.Delay(),
		sleeper:    sleeper,
		logger:     logger,
	}, nil
}

// Get fetches url and returns the parsed document. Any network error or
// non-2xx response counts as one failed attempt; the final attempt's error is
// returned after retries are exhausted.
func (f *Fetcher) Get(ctx context.Context, url string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		f.sleeper.Sleep(ctx, f.delay)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}

		res, err := f.client.R().SetContext(ctx).Get(url)
		switch {
		case err != nil:
			lastErr = err
		case !res.IsSuccess():
			lastErr = fmt.Errorf("unexpected status %d", res.StatusCode())
		default:
			doc, perr := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
			if perr != nil {
				return nil, fmt.Errorf("parse %s: %w", url, perr)
			}
			return doc, nil
		}

		if attempt < f.maxRetries-1 {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			f.logger.Warn("Fetch failed, retrying",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", f.maxRetries),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			f.sleeper.Sleep(ctx, wait)
		}
	}
	f.logger.Error("Fetch failed after all retries",
		zap.String("url", url), zap.Int("max_retries", f.maxRetries), zap.Error(lastErr))
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", url, f.maxRetries, lastErr)
}
