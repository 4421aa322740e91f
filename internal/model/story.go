package model

import "time"

// StoryStatus is the publication state of a story.
type StoryStatus string

const (
	StoryDraft     StoryStatus = "draft"
	StoryPublished StoryStatus = "published"
	StoryArchived  StoryStatus = "archived"
)

// Valid reports whether s is a known story status.
func (s StoryStatus) Valid() bool {
	return s == StoryDraft || s == StoryPublished || s == StoryArchived
}

// Story is a piece of content managed through the panel and served publicly
// once published.
type Story struct {
	ID            int64       `json:"id" db:"id"`
	Title         string      `json:"title" db:"title"`
	Slug          string      `json:"slug" db:"slug"`
	Excerpt       string      `json:"excerpt" db:"excerpt"`
	Content       string      `json:"content" db:"content"`
	Author        string      `json:"author" db:"author"`
	CoverImageURL string      `json:"cover_image_url" db:"cover_image_url"`
	Status        StoryStatus `json:"status" db:"status"`
	IsFeatured    bool        `json:"is_featured" db:"is_featured"`
	PublishedAt   *time.Time  `json:"published_at,omitempty" db:"published_at"`
	CreatedBy     *int64      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}
