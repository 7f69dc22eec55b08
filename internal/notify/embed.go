// Package notify delivers new-comment notifications to a Discord-style
// webhook in a single global chronological order.
package notify

import (
	"fmt"

	"github.com/geckyzz/nyaa-comments/internal/comment"
)

// Style selects the embed shape for a notification. It is a closed set; each
// variant has exactly one render function.
type Style int

// Supported embed styles.
const (
	StyleNyaa Style = iota
	StyleSukebei
	StyleAnimeTosho
)

// Notification is one pending delivery: a new comment on a tracked item. It
// is ephemeral, created per diff and never persisted.
type Notification struct {
	ItemID  string
	Title   string
	Comment comment.Comment
	// Role annotates the author name on the Nyaa family, empty elsewhere.
	Role  comment.Role
	Style Style
}

// Embed mirrors the webhook embed JSON shape.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Thumbnail   *EmbedMedia  `json:"thumbnail,omitempty"`
	Description string       `json:"description,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedAuthor is the author block of an embed.
type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// EmbedMedia points at an embedded image.
type EmbedMedia struct {
	URL string `json:"url"`
}

// EmbedField is one name/value pair of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// webhookMessage is the full POST payload.
type webhookMessage struct {
	Embeds    []Embed `json:"embeds"`
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
}

const (
	colorNyaaFamily = 0x0085FF
	colorAnimeTosho = 0xFF6B00
	colorBackup     = 0x00FF00

	defaultAvatarURL = "https://nyaa.si/static/img/avatar/default.png"
	animeToshoIcon   = "https://cdn.discordapp.com/icons/885689092417921094/680cbf15fa9847f797b8a05f0c24ae0f.png?size=4096"

	// maxDescription is the channel's embed description limit; longer
	// bodies are truncated, never rejected.
	maxDescription = 4096
)

// message renders the notification into its style's payload.
func (n Notification) message() webhookMessage {
	switch n.Style {
	case StyleAnimeTosho:
		return renderAnimeTosho(n)
	default:
		return renderNyaaFamily(n)
	}
}

func renderNyaaFamily(n Notification) webhookMessage {
	host := "https://nyaa.si"
	username := "Nyaa Comments"
	if n.Style == StyleSukebei {
		host = "https://sukebei.nyaa.si"
		username = "Sukebei Comments"
	}

	avatar := n.Comment.User.Image
	if avatar == "" {
		avatar = defaultAvatarURL
	}
	name := n.Comment.User.Username
	if n.Role != "" {
		name = fmt.Sprintf("%s (%s)", name, n.Role)
	}

	embed := Embed{
		Title: fmt.Sprintf("New Comment on: %s", n.Title),
		URL:   fmt.Sprintf("%s/view/%s#com-%d", host, n.ItemID, n.Comment.Pos),
		Color: colorNyaaFamily,
		Author: &EmbedAuthor{
			Name:    name,
			URL:     fmt.Sprintf("%s/user/%s", host, n.Comment.User.Username),
			IconURL: avatar,
		},
		Thumbnail:   &EmbedMedia{URL: avatar},
		Description: truncate(n.Comment.Message, maxDescription),
		Timestamp:   n.Comment.PostedAt().Format(embedTimeLayout),
	}
	return webhookMessage{
		Embeds:    []Embed{embed},
		Username:  username,
		AvatarURL: defaultAvatarURL,
	}
}

func renderAnimeTosho(n Notification) webhookMessage {
	commentURL := fmt.Sprintf("https://animetosho.org/view/%s", n.ItemID)
	if n.Comment.ID != 0 {
		commentURL = fmt.Sprintf("%s#comment%d", commentURL, n.Comment.ID)
	}

	embed := Embed{
		Title: fmt.Sprintf("New Comment on: %s", n.Title),
		URL:   commentURL,
		Color: colorAnimeTosho,
		Author: &EmbedAuthor{
			Name: n.Comment.User.Username,
			URL:  commentURL,
		},
		Description: truncate(n.Comment.Message, maxDescription),
		Timestamp:   n.Comment.PostedAt().Format(embedTimeLayout),
	}
	return webhookMessage{
		Embeds:    []Embed{embed},
		Username:  "AnimeTosho Comments",
		AvatarURL: animeToshoIcon,
	}
}

const embedTimeLayout = "2006-01-02T15:04:05.000Z"

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
