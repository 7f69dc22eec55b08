package scrape

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/geckyzz/nyaa-comments/internal/comment"
)

// itemsPerPage is the fixed listing page size on the Nyaa family.
const itemsPerPage = 75

var (
	viewIDPattern    = regexp.MustCompile(`/view/(\d+)`)
	nonDigitPattern  = regexp.MustCompile(`\D`)
	resultsPattern   = regexp.MustCompile(`out of (\d+) results`)
	userCountPattern = regexp.MustCompile(`\((\d+)\)`)
)

// Nyaa scrapes the Nyaa.si/Sukebei layout: a paginated torrent listing with
// a comment badge per row, and per-torrent view pages carrying the comment
// panels. A /view/<id> base URL switches to single-torrent mode.
type Nyaa struct {
	baseURL  string
	origin   string
	site     Site
	maxPages int
	singleID string
	fetcher  PageGetter
	logger   *zap.Logger
}

// NewNyaa builds a scraper for baseURL. maxPages caps the listing walk; zero
// or negative means no cap.
func NewNyaa(baseURL string, maxPages int, fetcher PageGetter, logger *zap.Logger) (*Nyaa, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	n := &Nyaa{
		baseURL:  baseURL,
		origin:   parsed.Scheme + "://" + parsed.Host,
		site:     DetectSite(baseURL),
		maxPages: maxPages,
		fetcher:  fetcher,
		logger:   logger,
	}
	if m := viewIDPattern.FindStringSubmatch(baseURL); m != nil {
		n.singleID = m[1]
	}
	return n, nil
}

// Site implements Scraper.
func (n *Nyaa) Site() Site {
	return n.site
}

// SingleID returns the watched torrent id in single-torrent mode, empty in
// listing mode.
func (n *Nyaa) SingleID() string {
	return n.singleID
}

// Scan implements Scraper. In single-torrent mode it checks the one view
// page; in listing mode it walks the paginated listing collecting ids of
// rows that show a comment badge. A page that cannot be fetched is skipped;
// it never fails the whole scan.
func (n *Nyaa) Scan(ctx context.Context) (map[string]int, error) {
	if n.singleID != "" {
		return n.scanSingle(ctx)
	}
	return n.scanListing(ctx)
}

func (n *Nyaa) scanSingle(ctx context.Context) (map[string]int, error) {
	doc, err := n.fetcher.Get(ctx, n.baseURL)
	if err != nil {
		return nil, err
	}
	count := doc.Find("div#comments div.comment-panel").Length()
	if count == 0 {
		return map[string]int{}, nil
	}
	return map[string]int{n.singleID: count}, nil
}

func (n *Nyaa) scanListing(ctx context.Context) (map[string]int, error) {
	first, err := n.fetcher.Get(ctx, n.baseURL)
	if err != nil {
		return nil, err
	}

	totalPages := n.totalPages(first)
	if n.maxPages > 0 && totalPages > n.maxPages {
		totalPages = n.maxPages
	}
	n.logger.Info("Scanning listing",
		zap.String("site", n.site.String()), zap.Int("pages", totalPages))

	items := make(map[string]int)
	for page := 1; page <= totalPages; page++ {
		doc := first
		if page > 1 {
			doc, err = n.fetcher.Get(ctx, pageURL(n.baseURL, "p", page))
			if err != nil {
				n.logger.Warn("Skipping unreachable listing page",
					zap.Int("page", page), zap.Error(err))
				continue
			}
		}
		n.collectListingRows(doc, items)
	}
	return items, nil
}

// totalPages derives the page count from the first listing page: user pages
// carry the torrent total in the heading, everything else in the pagination
// info line.
func (n *Nyaa) totalPages(doc *goquery.Document) int {
	var m []string
	if strings.Contains(n.baseURL, "/user/") {
		m = userCountPattern.FindStringSubmatch(doc.Find("h3").First().Text())
	} else {
		m = resultsPattern.FindStringSubmatch(doc.Find("div.pagination-page-info").Text())
	}
	if m == nil {
		return 1
	}
	total, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return (total + itemsPerPage - 1) / itemsPerPage
}

func (n *Nyaa) collectListingRows(doc *goquery.Document, items map[string]int) {
	doc.Find("tr.default, tr.success").Each(func(_ int, row *goquery.Selection) {
		badge := row.Find("a.comments").First()
		if badge.Length() == 0 {
			return
		}
		var id string
		row.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			if !ok || !strings.Contains(href, "/view/") || strings.Contains(href, "#") {
				return true
			}
			parts := strings.Split(href, "/")
			id = parts[len(parts)-1]
			return false
		})
		if id == "" {
			return
		}
		count, err := strconv.Atoi(nonDigitPattern.ReplaceAllString(badge.Text(), ""))
		if err != nil {
			return
		}
		items[id] = count
	})
}

// Thread implements Scraper: it parses every comment panel on the torrent's
// view page. A panel missing its expected structure is logged and skipped;
// the rest of the thread is still returned.
func (n *Nyaa) Thread(ctx context.Context, id string) (Thread, error) {
	doc, err := n.fetcher.Get(ctx, n.viewURL(id))
	if err != nil {
		return Thread{}, err
	}

	th := Thread{Roles: make(map[int]comment.Role)}
	doc.Find("div.comment-panel").Each(func(i int, panel *goquery.Selection) {
		c, ok := n.parsePanel(panel, i)
		if !ok {
			n.logger.Warn("Skipping unparsable comment panel",
				zap.String("item_id", id), zap.Int("index", i))
			return
		}
		th.Comments = append(th.Comments, c)
		if role, ok := detectRole(panel, doc); ok {
			th.Roles[c.ID] = role
		}
	})
	return th, nil
}

func (n *Nyaa) parsePanel(panel *goquery.Selection, index int) (comment.Comment, bool) {
	userLink := panel.Find(`a[href*="/user/"]`).First()
	stamp := panel.Find("small[data-timestamp-swap]").First()
	content := panel.Find("div.comment-content").First()
	contentID, hasID := content.Attr("id")
	tsAttr, hasTS := stamp.Attr("data-timestamp")
	if userLink.Length() == 0 || !hasTS || !hasID {
		return comment.Comment{}, false
	}

	idDigits := nonDigitPattern.ReplaceAllString(contentID, "")
	if idDigits == "" {
		return comment.Comment{}, false
	}
	commentID, err := strconv.Atoi(idDigits)
	if err != nil {
		return comment.Comment{}, false
	}
	ts, err := strconv.ParseInt(tsAttr, 10, 64)
	if err != nil {
		return comment.Comment{}, false
	}

	avatar := ""
	if src, ok := panel.Find("img.avatar").First().Attr("src"); ok {
		avatar = n.absoluteURL(src)
	}

	return comment.Comment{
		ID:        commentID,
		Pos:       index + 1,
		Timestamp: ts,
		User: comment.User{
			Username: strings.TrimSpace(userLink.Text()),
			Image:    avatar,
		},
		Message: strings.TrimSpace(content.Text()),
	}, true
}

// detectRole inspects a comment panel (and the surrounding view page) for
// the author's standing: a "Trusted" link title, an "(uploader)" marker next
// to the name, or a match against the page's submitter link.
func detectRole(panel *goquery.Selection, doc *goquery.Document) (comment.Role, bool) {
	userLink := panel.Find(`a[href*="/user/"]`).First()
	if userLink.Length() == 0 {
		return "", false
	}
	if title, ok := userLink.Attr("title"); ok && title == "Trusted" {
		return comment.RoleTrusted, true
	}
	if strings.Contains(userLink.ParentsFiltered("p").First().Text(), "(uploader)") {
		return comment.RoleUploader, true
	}

	// Anonymous submissions list the real uploader next to "Anonymous" in
	// the details block; a commenter matching that link is the uploader.
	role := comment.Role("")
	doc.Find("div.col-md-5").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if !strings.Contains(div.Text(), "Anonymous") {
			return true
		}
		uploader := div.Find(`a[href*="/user/"]`).First()
		if uploader.Length() > 0 &&
			strings.TrimSpace(uploader.Text()) == strings.TrimSpace(userLink.Text()) {
			role = comment.RoleUploader
		}
		return false
	})
	return role, role != ""
}

// Title implements Scraper.
func (n *Nyaa) Title(ctx context.Context, id string) string {
	doc, err := n.fetcher.Get(ctx, n.viewURL(id))
	if err != nil {
		return fmt.Sprintf("Torrent ID %s", id)
	}
	title := strings.TrimSpace(doc.Find("h3.panel-title").First().Text())
	if title == "" {
		return fmt.Sprintf("Torrent ID %s", id)
	}
	return title
}

func (n *Nyaa) viewURL(id string) string {
	return n.origin + "/view/" + id
}

func (n *Nyaa) absoluteURL(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	base, err := url.Parse(n.origin)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// pageURL appends the pagination query parameter to a base URL that may or
// may not already carry a query string.
func pageURL(base, param string, page int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%d", base, sep, param, page)
}
