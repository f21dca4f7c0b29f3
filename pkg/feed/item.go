// Package feed defines the feed item model and the author-diversity
// arrangement used to lay items out on a tile grid.
package feed

import "time"

// Item is one entry in a user's feed. Items are immutable from the
// arranger's perspective; engagement state (likes, follows, read marks)
// lives in the interaction engine, not here.
type Item struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Title      string    `json:"title,omitempty"`
	Body       string    `json:"body,omitempty"`

	// MediaKey is the storage key of the item's media object. The server
	// resolves it to MediaURL before handing items to a client.
	MediaKey string `json:"media_key,omitempty"`
	MediaURL string `json:"media_url,omitempty"`

	LikeCount int       `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Page is one page of feed results.
type Page struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}
