// Package scrape extracts tracked items and their comment threads from the
// supported site families. The diff and notify layers depend only on the
// shapes returned here, never on how a page was parsed.
package scrape

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/geckyzz/nyaa-comments/internal/comment"
	"github.com/geckyzz/nyaa-comments/internal/notify"
)

// PageGetter fetches and parses one page. Implemented by fetch.Fetcher.
type PageGetter interface {
	Get(ctx context.Context, url string) (*goquery.Document, error)
}

// Thread is the full current comment state of one tracked item.
type Thread struct {
	// Comments is the ordered raw sequence in site order; positions are
	// assigned later by the diff engine.
	Comments []comment.Comment
	// Roles maps comment id to the author's site role. Nyaa family only.
	Roles map[int]comment.Role
	// Title is the item title when the site yields it during the scan,
	// empty when it must be fetched lazily.
	Title string
}

// Scraper observes one site family.
type Scraper interface {
	// Scan walks the configured listing (or single item) and returns the
	// current comment count per tracked item. Only items with at least one
	// comment appear.
	Scan(ctx context.Context) (map[string]int, error)
	// Thread returns the full comment sequence for one item id.
	Thread(ctx context.Context, id string) (Thread, error)
	// Title resolves the item's human-readable title. It is fetched lazily
	// so a run with no new comments never pays for it.
	Title(ctx context.Context, id string) string
	// Site identifies the family, which selects the snapshot file and the
	// notification embed style.
	Site() Site
}

// Site is the closed set of supported page layouts.
type Site int

// Supported site families. Nyaa and Sukebei share one layout.
const (
	SiteNyaa Site = iota
	SiteSukebei
	SiteAnimeTosho
)

// DetectSite classifies a base URL. Anything that is not AnimeTosho or
// Sukebei is treated as the Nyaa layout.
func DetectSite(baseURL string) Site {
	switch {
	case strings.Contains(baseURL, "animetosho.org"):
		return SiteAnimeTosho
	case strings.Contains(baseURL, "sukebei.nyaa.si"):
		return SiteSukebei
	default:
		return SiteNyaa
	}
}

// String implements fmt.Stringer.
func (s Site) String() string {
	switch s {
	case SiteSukebei:
		return "Sukebei"
	case SiteAnimeTosho:
		return "AnimeTosho"
	default:
		return "Nyaa.si"
	}
}

// SnapshotFile returns the per-family snapshot file name.
func (s Site) SnapshotFile() string {
	switch s {
	case SiteSukebei:
		return "database.sukebei.json"
	case SiteAnimeTosho:
		return "database.at.json"
	default:
		return "database.json"
	}
}

// Style maps the site family to its notification embed variant.
func (s Site) Style() notify.Style {
	switch s {
	case SiteSukebei:
		return notify.StyleSukebei
	case SiteAnimeTosho:
		return notify.StyleAnimeTosho
	default:
		return notify.StyleNyaa
	}
}
