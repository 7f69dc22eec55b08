package scrape

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geckyzz/nyaa-comments/internal/comment"
)

// fakePages serves parsed documents from an in-memory URL -> HTML map.
type fakePages struct {
	pages    map[string]string
	requests []string
}

func (f *fakePages) Get(_ context.Context, url string) (*goquery.Document, error) {
	f.requests = append(f.requests, url)
	html, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: unexpected status 404", url)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

const nyaaViewPage = `<html><body>
<div class="panel"><h3 class="panel-title">[Subs] Great Show - 01</h3></div>
<div class="row">
  <div class="col-md-5">Anonymous (<a href="/user/realuploader">realuploader</a>)</div>
</div>
<div id="comments" class="panel">
  <div class="comment-panel" id="com-1">
    <img class="avatar" src="/static/img/avatar/default.png">
    <p><a href="/user/firstposter" title="User">firstposter</a></p>
    <small data-timestamp-swap data-timestamp="1600000100">2020-09-13</small>
    <div class="comment-content" id="torrent-comment101">first!</div>
  </div>
  <div class="comment-panel" id="com-2">
    <img class="avatar" src="https://nyaa.si/static/img/avatar/trusty.png">
    <p><a href="/user/trusty" title="Trusted">trusty</a></p>
    <small data-timestamp-swap data-timestamp="1600000200">2020-09-13</small>
    <div class="comment-content" id="torrent-comment102">thanks</div>
  </div>
  <div class="comment-panel" id="com-3">
    <p><a href="/user/realuploader" title="User">realuploader</a></p>
    <small data-timestamp-swap data-timestamp="1600000300">2020-09-13</small>
    <div class="comment-content" id="torrent-comment103">enjoy</div>
  </div>
  <div class="comment-panel" id="com-4">
    <p>deleted user</p>
    <small data-timestamp-swap>no attribute</small>
    <div class="comment-content">broken panel</div>
  </div>
</div>
</body></html>`

func listingPage(pageInfo string, rows string) string {
	return fmt.Sprintf(`<html><body>
<div class="pagination-page-info">%s</div>
<table><tbody>%s</tbody></table>
</body></html>`, pageInfo, rows)
}

func listingRow(class, id string, comments int) string {
	badge := ""
	if comments > 0 {
		badge = fmt.Sprintf(`<a href="/view/%s#comments" class="comments"><i></i>%d</a>`, id, comments)
	}
	return fmt.Sprintf(`<tr class="%s">
<td>%s<a href="/view/%s">Torrent %s</a></td>
</tr>`, class, badge, id, id)
}

func TestNyaaThreadParsesPanels(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"https://nyaa.si/view/2008634": nyaaViewPage,
	}}
	n, err := NewNyaa("https://nyaa.si", 0, pages, zap.NewNop())
	require.NoError(t, err)

	th, err := n.Thread(context.Background(), "2008634")
	require.NoError(t, err)

	// The broken fourth panel is skipped, the rest survive.
	require.Len(t, th.Comments, 3)

	first := th.Comments[0]
	require.Equal(t, 101, first.ID)
	require.Equal(t, 1, first.Pos)
	require.Equal(t, int64(1600000100), first.Timestamp)
	require.Equal(t, "firstposter", first.User.Username)
	require.Equal(t, "https://nyaa.si/static/img/avatar/default.png", first.User.Image,
		"relative avatar URLs are resolved against the site origin")
	require.Equal(t, "first!", first.Message)

	require.Equal(t, "https://nyaa.si/static/img/avatar/trusty.png", th.Comments[1].User.Image)
}

func TestNyaaThreadDetectsRoles(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"https://nyaa.si/view/2008634": nyaaViewPage,
	}}
	n, err := NewNyaa("https://nyaa.si", 0, pages, zap.NewNop())
	require.NoError(t, err)

	th, err := n.Thread(context.Background(), "2008634")
	require.NoError(t, err)

	require.NotContains(t, th.Roles, 101)
	require.Equal(t, comment.RoleTrusted, th.Roles[102])
	// Matches the uploader named next to "Anonymous" in the details block.
	require.Equal(t, comment.RoleUploader, th.Roles[103])
}

func TestNyaaScanListingWalksPages(t *testing.T) {
	// 80 results -> 2 pages of 75.
	pages := &fakePages{pages: map[string]string{
		"https://nyaa.si": listingPage("Displaying results 1-75 out of 80 results.",
			listingRow("default", "100", 3)+
				listingRow("success", "101", 12)+
				listingRow("default", "102", 0)),
		"https://nyaa.si?p=2": listingPage("Displaying results 76-80 out of 80 results.",
			listingRow("default", "103", 1)),
	}}
	n, err := NewNyaa("https://nyaa.si", 0, pages, zap.NewNop())
	require.NoError(t, err)

	items, err := n.Scan(context.Background())
	require.NoError(t, err)

	require.Equal(t, map[string]int{"100": 3, "101": 12, "103": 1}, items)
}

func TestNyaaScanListingRespectsMaxPages(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"https://nyaa.si": listingPage("out of 300 results",
			listingRow("default", "1", 2)),
	}}
	n, err := NewNyaa("https://nyaa.si", 1, pages, zap.NewNop())
	require.NoError(t, err)

	items, err := n.Scan(context.Background())
	require.NoError(t, err)

	require.Equal(t, map[string]int{"1": 2}, items)
	require.Equal(t, []string{"https://nyaa.si"}, pages.requests)
}

func TestNyaaScanListingSkipsUnreachablePage(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"https://nyaa.si": listingPage("out of 200 results",
			listingRow("default", "1", 2)),
		"https://nyaa.si?p=3": listingPage("",
			listingRow("default", "3", 4)),
		// page 2 missing: Get fails, scan continues.
	}}
	n, err := NewNyaa("https://nyaa.si", 0, pages, zap.NewNop())
	require.NoError(t, err)

	items, err := n.Scan(context.Background())
	require.NoError(t, err)

	require.Equal(t, map[string]int{"1": 2, "3": 4}, items)
}

func TestNyaaScanUserListingReadsHeadingCount(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"https://nyaa.si/user/subsguy": `<html><body>
<h3>Browsing subsguy's torrents (80)</h3>
<table><tbody>` + listingRow("default", "55", 7) + `</tbody></table>
</body></html>`,
		"https://nyaa.si/user/subsguy?p=2": listingPage("",
			listingRow("success", "56", 2)),
	}}
	n, err := NewNyaa("https://nyaa.si/user/subsguy", 0, pages, zap.NewNop())
	require.NoError(t, err)

	items, err := n.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int{"55": 7, "56": 2}, items)
}

func TestNyaaScanSingleTorrent(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"https://nyaa.si/view/2008634": nyaaViewPage,
	}}
	n, err := NewNyaa("https://nyaa.si/view/2008634", 0, pages, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, "2008634", n.SingleID())

	items, err := n.Scan(context.Background())
	require.NoError(t, err)

	require.Equal(t, map[string]int{"2008634": 4}, items)
}

func TestNyaaTitle(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"https://nyaa.si/view/2008634": nyaaViewPage,
	}}
	n, err := NewNyaa("https://nyaa.si", 0, pages, zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, "[Subs] Great Show - 01", n.Title(context.Background(), "2008634"))
	require.Equal(t, "Torrent ID 404", n.Title(context.Background(), "404"),
		"unreachable view page falls back to a placeholder title")
}

func TestNewNyaaRejectsRelativeURL(t *testing.T) {
	_, err := NewNyaa("nyaa.si/user/subsguy", 0, &fakePages{}, zap.NewNop())
	require.Error(t, err)
}

func TestPageURL(t *testing.T) {
	require.Equal(t, "https://nyaa.si?p=2", pageURL("https://nyaa.si", "p", 2))
	require.Equal(t, "https://nyaa.si/?f=0&c=0_0&p=3", pageURL("https://nyaa.si/?f=0&c=0_0", "p", 3))
}
