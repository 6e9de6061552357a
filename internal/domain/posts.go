package domain

import "time"

type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Caption   string    `json:"caption"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

type FeedItem struct {
	Post   Post        `json:"post"`
	Author UserSummary `json:"author"`
}
