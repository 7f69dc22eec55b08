// Package comment defines the core types shared across subsystems.
package comment

import "time"

// Role marks the site-level standing of a commenter on the Nyaa family of
// sites. AnimeTosho has no equivalent concept.
type Role string

// Roles detectable from a torrent view page.
const (
	RoleTrusted  Role = "trusted"
	RoleUploader Role = "uploader"
)

// User identifies the author of a comment.
type User struct {
	Username string `json:"username"`
	// Image is the absolute avatar URL, empty when the site provides none.
	Image string `json:"image,omitempty"`
}

// Comment is one posted message within a tracked item's thread. Instances are
// immutable once extracted; Pos is assigned by the diff engine, never by the
// site.
type Comment struct {
	// ID is the site-assigned comment id, 0 when the site exposes none.
	ID int `json:"id"`
	// Pos is the 1-based position within the item's thread in timestamp
	// order.
	Pos int `json:"pos"`
	// Timestamp is seconds since the Unix epoch, UTC.
	Timestamp int64 `json:"timestamp"`
	User      User  `json:"user"`
	// Message is the comment body, already normalized to plain/markdown
	// text by the extractor.
	Message string `json:"message"`
}

// PostedAt returns the comment timestamp as a UTC time.
func (c Comment) PostedAt() time.Time {
	return time.Unix(c.Timestamp, 0).UTC()
}
