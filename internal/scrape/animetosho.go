package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/geckyzz/nyaa-comments/internal/clock"
	"github.com/geckyzz/nyaa-comments/internal/comment"
)

var (
	atSlugPattern      = regexp.MustCompile(`/view/([^#]+)`)
	atCommentIDPattern = regexp.MustCompile(`#comment(\d+)`)
	atPageParamPattern = regexp.MustCompile(`[?&]page=(\d+)`)
	atClockPattern     = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	atDatePattern      = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{2,4})\s+(\d{1,2}):(\d{2})`)
	atTimePrefix       = regexp.MustCompile(`^[—\s]+`)
	excessNewlines     = regexp.MustCompile(`\n{3,}`)
	httpsLinkLabel     = regexp.MustCompile(`\[https://(.*?)\]`)
	httpLinkLabel      = regexp.MustCompile(`\[http://(.*?)\]`)
)

// AnimeTosho scrapes the AnimeTosho comments feed: a paginated stream of
// recent comments across all torrents, rather than per-torrent pages. One
// scan collects every thread it can see, so Thread and Title answer from the
// scan's result.
type AnimeTosho struct {
	baseURL  string
	keywords []string
	maxPages int
	fetcher  PageGetter
	clk      clock.Clock
	conv     *converter.Converter
	logger   *zap.Logger

	threads map[string]Thread
}

// NewAnimeTosho builds a scraper for the comments feed at baseURL. keywords
// filters torrents by case-insensitive title substring; maxPages zero means
// walk every page the pagination advertises.
func NewAnimeTosho(baseURL string, keywords []string, maxPages int, fetcher PageGetter, clk clock.Clock, logger *zap.Logger) *AnimeTosho {
	return &AnimeTosho{
		baseURL:  baseURL,
		keywords: keywords,
		maxPages: maxPages,
		fetcher:  fetcher,
		clk:      clk,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		logger:  logger,
		threads: make(map[string]Thread),
	}
}

// Site implements Scraper.
func (a *AnimeTosho) Site() Site {
	return SiteAnimeTosho
}

// Scan implements Scraper: it walks the feed pages, groups comments by
// torrent slug, and returns per-item counts. Unreachable pages are skipped.
func (a *AnimeTosho) Scan(ctx context.Context) (map[string]int, error) {
	first, err := a.fetcher.Get(ctx, a.baseURL)
	if err != nil {
		return nil, err
	}

	totalPages := maxPageFromPagination(first)
	if a.maxPages > 0 && totalPages > a.maxPages {
		totalPages = a.maxPages
	}
	a.logger.Info("Scanning comments feed", zap.Int("pages", totalPages))

	for page := 1; page <= totalPages; page++ {
		doc := first
		if page > 1 {
			doc, err = a.fetcher.Get(ctx, pageURL(a.baseURL, "page", page))
			if err != nil {
				a.logger.Warn("Skipping unreachable feed page",
					zap.Int("page", page), zap.Error(err))
				continue
			}
		}
		a.collectFeedPage(doc)
	}

	counts := make(map[string]int, len(a.threads))
	for id, th := range a.threads {
		counts[id] = len(th.Comments)
	}
	return counts, nil
}

// Thread implements Scraper, answering from the preceding Scan.
func (a *AnimeTosho) Thread(_ context.Context, id string) (Thread, error) {
	th, ok := a.threads[id]
	if !ok {
		return Thread{}, fmt.Errorf("item %s not observed by scan", id)
	}
	return th, nil
}

// Title implements Scraper. The feed carries titles, so no extra fetch.
func (a *AnimeTosho) Title(_ context.Context, id string) string {
	if th, ok := a.threads[id]; ok && th.Title != "" {
		return th.Title
	}
	return fmt.Sprintf("Torrent %s", id)
}

func maxPageFromPagination(doc *goquery.Document) int {
	maxPage := 1
	doc.Find("div.pagination a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if m := atPageParamPattern.FindStringSubmatch(href); m != nil {
			if page, err := strconv.Atoi(m[1]); err == nil && page > maxPage {
				maxPage = page
			}
		}
	})
	return maxPage
}

func (a *AnimeTosho) collectFeedPage(doc *goquery.Document) {
	doc.Find("div.comment, div.comment2").Each(func(_ int, div *goquery.Selection) {
		a.collectFeedEntry(div)
	})
}

func (a *AnimeTosho) collectFeedEntry(div *goquery.Selection) {
	meta := div.Find("div.comment_user").First()
	if meta.Length() == 0 {
		return
	}

	viewLinks := meta.Find(`a[href*="/view/"]`)
	if viewLinks.Length() == 0 {
		return
	}
	href, _ := viewLinks.First().Attr("href")
	slug := atSlugPattern.FindStringSubmatch(href)
	if slug == nil {
		return
	}
	itemID := slug[1]

	// The first view link is the comment anchor, the second the title.
	title := fmt.Sprintf("Torrent %s", itemID)
	if viewLinks.Length() > 1 {
		title = strings.TrimSpace(viewLinks.Eq(1).Text())
	}
	if !a.matchesKeywords(title) {
		return
	}

	commentID := 0
	meta.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if m := atCommentIDPattern.FindStringSubmatch(href); m != nil {
			commentID, _ = strconv.Atoi(m[1])
			return false
		}
		return true
	})

	nameElem := meta.Find("strong").First()
	if nameElem.Length() == 0 {
		return
	}
	username := normalizeAnonymous(strings.TrimSpace(nameElem.Text()))

	content := div.Find("div.user_message_c").First()
	if content.Length() == 0 {
		return
	}
	rawHTML, err := goquery.OuterHtml(content)
	if err != nil {
		a.logger.Warn("Skipping unrenderable comment body",
			zap.String("item_id", itemID), zap.Error(err))
		return
	}

	c := comment.Comment{
		ID:        commentID,
		Timestamp: a.parseRelativeTime(timeTextAfterBreak(meta)),
		User:      comment.User{Username: username},
		Message:   a.htmlToMarkdown(rawHTML),
	}

	th := a.threads[itemID]
	th.Title = title
	th.Comments = append(th.Comments, c)
	a.threads[itemID] = th
}

func (a *AnimeTosho) matchesKeywords(title string) bool {
	if len(a.keywords) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range a.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// normalizeAnonymous rewrites `Anonymous: "nick"` to `Anonymous (nick)`.
func normalizeAnonymous(username string) string {
	if !strings.HasPrefix(username, "Anonymous") || !strings.Contains(username, ":") {
		return username
	}
	nick := strings.Trim(strings.TrimSpace(strings.SplitN(username, ":", 2)[1]), `"`)
	if nick == "" {
		return "Anonymous"
	}
	return fmt.Sprintf("Anonymous (%s)", nick)
}

// timeTextAfterBreak pulls the raw timestamp text that follows the <br> in a
// feed entry's meta block.
func timeTextAfterBreak(meta *goquery.Selection) string {
	br := meta.Find("br").First()
	if br.Length() == 0 {
		return ""
	}
	node := br.Get(0).NextSibling
	if node == nil || node.Type != html.TextNode {
		return ""
	}
	return atTimePrefix.ReplaceAllString(strings.TrimSpace(node.Data), "")
}

// parseRelativeTime turns the feed's "Today 15:51", "Yesterday 23:47" or
// "25/10/25 18:33" strings into Unix timestamps (UTC). Unparsable input
// falls back to the current time.
func (a *AnimeTosho) parseRelativeTime(s string) int64 {
	now := a.clk.Now()

	switch {
	case strings.Contains(s, "Today"):
		if m := atClockPattern.FindStringSubmatch(s); m != nil {
			hour, _ := strconv.Atoi(m[1])
			minute, _ := strconv.Atoi(m[2])
			return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC).Unix()
		}
	case strings.Contains(s, "Yesterday"):
		if m := atClockPattern.FindStringSubmatch(s); m != nil {
			hour, _ := strconv.Atoi(m[1])
			minute, _ := strconv.Atoi(m[2])
			y := now.AddDate(0, 0, -1)
			return time.Date(y.Year(), y.Month(), y.Day(), hour, minute, 0, 0, time.UTC).Unix()
		}
	default:
		if m := atDatePattern.FindStringSubmatch(s); m != nil {
			day, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			year, _ := strconv.Atoi(m[3])
			hour, _ := strconv.Atoi(m[4])
			minute, _ := strconv.Atoi(m[5])
			if year < 100 {
				year += 2000
			}
			return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC).Unix()
		}
	}
	return now.Unix()
}

func (a *AnimeTosho) htmlToMarkdown(rawHTML string) string {
	md, err := a.conv.ConvertString(rawHTML)
	if err != nil {
		// Fall back to the raw text of the node.
		return strings.TrimSpace(rawHTML)
	}
	md = excessNewlines.ReplaceAllString(md, "\n\n")
	md = httpsLinkLabel.ReplaceAllString(md, "[$1]")
	md = httpLinkLabel.ReplaceAllString(md, "[$1]")
	return strings.TrimSpace(md)
}
