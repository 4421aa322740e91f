package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/query"
)

const storyColumns = `id, title, slug, excerpt, content, author, cover_image_url, status,
	is_featured, published_at, created_by, created_at, updated_at`

// StoryOrderColumns lists the columns a story listing may be ordered by.
var StoryOrderColumns = []string{"created_at", "updated_at", "published_at", "title"}

// StoryFilter narrows a story listing. Zero values mean "no constraint".
type StoryFilter struct {
	Status   model.StoryStatus
	Featured *bool
	Search   string
	Order    query.Order
	Page     model.Page
}

// CreateStory inserts a new story. The ID, CreatedAt, and UpdatedAt fields
// are populated after a successful insert.
func (s *Store) CreateStory(ctx context.Context, story *model.Story) error {
	now := time.Now().UTC()
	story.CreatedAt = now
	story.UpdatedAt = now

	const q = `INSERT INTO stories
		(title, slug, excerpt, content, author, cover_image_url, status, is_featured,
		 published_at, created_by, created_at, updated_at)
		VALUES
		(:title, :slug, :excerpt, :content, :author, :cover_image_url, :status, :is_featured,
		 :published_at, :created_by, :created_at, :updated_at)`

	id, err := s.insert(ctx, q, story)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	story.ID = id
	return nil
}

// GetStory returns a story by ID.
func (s *Store) GetStory(ctx context.Context, id int64) (*model.Story, error) {
	var story model.Story
	if err := s.get(ctx, &story, "SELECT "+storyColumns+" FROM stories WHERE id = ?", id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get story: %w", err)
	}
	return &story, nil
}

// GetStoryBySlug returns a story by its unique slug.
func (s *Store) GetStoryBySlug(ctx context.Context, slug string) (*model.Story, error) {
	var story model.Story
	if err := s.get(ctx, &story, "SELECT "+storyColumns+" FROM stories WHERE slug = ?", slug); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get story by slug: %w", err)
	}
	return &story, nil
}

// SlugExists reports whether slug is taken by a story other than excludeID.
func (s *Store) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var count int
	if err := s.get(ctx, &count, "SELECT COUNT(*) FROM stories WHERE slug = ? AND id <> ?", slug, excludeID); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return count > 0, nil
}

// ListStories returns one page of stories matching f plus the total count.
func (s *Store) ListStories(ctx context.Context, f StoryFilter) ([]model.Story, int64, error) {
	var w whereBuilder
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	if f.Featured != nil {
		w.add("is_featured = ?", *f.Featured)
	}
	w.search(f.Search, "title", "excerpt", "author")

	var total int64
	if err := s.get(ctx, &total, "SELECT COUNT(*) FROM stories"+w.clause(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count stories: %w", err)
	}

	order := f.Order
	if order.Column == "" {
		order = query.Order{Column: "created_at", Desc: true}
	}
	q := "SELECT " + storyColumns + " FROM stories" + w.clause() +
		" ORDER BY " + order.SQL() + ", id DESC LIMIT ? OFFSET ?"
	args := append(w.args, f.Page.Limit, f.Page.Offset())

	stories := []model.Story{}
	if err := s.selectRows(ctx, &stories, q, args...); err != nil {
		return nil, 0, fmt.Errorf("list stories: %w", err)
	}
	return stories, total, nil
}

// UpdateStory writes every mutable field of story. UpdatedAt is refreshed.
func (s *Store) UpdateStory(ctx context.Context, story *model.Story) error {
	story.UpdatedAt = time.Now().UTC()

	const q = `UPDATE stories SET
		title = :title, slug = :slug, excerpt = :excerpt, content = :content, author = :author,
		cover_image_url = :cover_image_url, status = :status, is_featured = :is_featured,
		published_at = :published_at, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, story)
	if err != nil {
		return fmt.Errorf("update story: %w", classify(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update story rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStory removes a story by ID.
func (s *Store) DeleteStory(ctx context.Context, id int64) error {
	err := s.exec(ctx, "DELETE FROM stories WHERE id = ?", id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete story: %w", err)
	}
	return err
}
