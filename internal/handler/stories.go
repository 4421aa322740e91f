package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storydesk/storydesk/internal/config"
	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/query"
	"github.com/storydesk/storydesk/internal/server/middleware"
	"github.com/storydesk/storydesk/internal/validate"
)

const maxSlugLen = 80

// StoryHandler serves the public story feed and the admin story editor.
type StoryHandler struct {
	store  *config.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewStoryHandler creates a new StoryHandler.
func NewStoryHandler(store *config.Store, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{store: store, logger: logger, now: time.Now}
}

// StoryInput is the payload for creating or replacing a story.
type StoryInput struct {
	Title         string            `json:"title" validate:"required,max=255"`
	Slug          string            `json:"slug" validate:"max=255"`
	Excerpt       string            `json:"excerpt" validate:"max=1000"`
	Content       string            `json:"content" validate:"required"`
	Author        string            `json:"author" validate:"max=255"`
	CoverImageURL string            `json:"cover_image_url" validate:"omitempty,url,max=1024"`
	Status        model.StoryStatus `json:"status" validate:"omitempty,oneof=draft published archived"`
	IsFeatured    *bool             `json:"is_featured"`
}

// PublicList returns published stories, newest first.
// GET /api/v1/stories
func (h *StoryHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	featured, err := queryBool(r, "featured")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	f := config.StoryFilter{
		Status:   model.StoryPublished,
		Featured: featured,
		Order:    query.Order{Column: "published_at", Desc: true},
		Page:     queryPage(r),
	}
	h.list(w, r, f)
}

// PublicGet returns one published story by slug.
// GET /api/v1/stories/{slug}
func (h *StoryHandler) PublicGet(w http.ResponseWriter, r *http.Request) {
	story, err := h.store.GetStoryBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil || story.Status != model.StoryPublished {
		if err == nil || errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Story not found")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, story)
}

// List returns stories in any status.
// GET /api/v1/admin/stories
func (h *StoryHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.StoryStatus(queryString(r, "status"))
	var verrs []error
	if status != "" && !status.Valid() {
		verrs = append(verrs, validate.Fieldf("status", "must be one of: draft, published, archived"))
	}
	featured, err := queryBool(r, "featured")
	verrs = append(verrs, err)
	order, err := query.ParseOrder(queryString(r, "order"), config.StoryOrderColumns,
		query.Order{Column: "created_at", Desc: true})
	if err != nil {
		verrs = append(verrs, validate.Fieldf("order", "%s", err.Error()))
	}
	if err := validate.Merge(verrs...); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.list(w, r, config.StoryFilter{
		Status:   status,
		Featured: featured,
		Search:   queryString(r, "search"),
		Order:    order,
		Page:     queryPage(r),
	})
}

func (h *StoryHandler) list(w http.ResponseWriter, r *http.Request, f config.StoryFilter) {
	stories, total, err := h.store.ListStories(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeList(w, stories, len(stories), total, f.Page)
}

// Get returns a story by id in any status.
// GET /api/v1/admin/stories/{id}
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	story, err := h.store.GetStory(r.Context(), id)
	if err != nil {
		h.writeStoryError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, story)
}

// Create adds a story. The slug is derived from the title when not given.
// POST /api/v1/admin/stories
func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in StoryInput
	if !readJSON(w, r, &in) {
		return
	}
	story := &model.Story{Status: model.StoryDraft}
	if err := h.apply(r.Context(), story, in); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if ident := middleware.GetIdentity(r.Context()); ident != nil {
		story.CreatedBy = &ident.ID
	}

	if err := h.store.CreateStory(r.Context(), story); err != nil {
		h.writeStoryError(w, r, err)
		return
	}
	h.logger.Info("story created", "story_id", story.ID, "slug", story.Slug, "status", story.Status)
	writeData(w, http.StatusCreated, story)
}

// Update replaces the editable fields of a story.
// PUT /api/v1/admin/stories/{id}
func (h *StoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in StoryInput
	if !readJSON(w, r, &in) {
		return
	}
	story, err := h.store.GetStory(r.Context(), id)
	if err != nil {
		h.writeStoryError(w, r, err)
		return
	}
	if err := h.apply(r.Context(), story, in); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := h.store.UpdateStory(r.Context(), story); err != nil {
		h.writeStoryError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, story)
}

// Delete removes a story.
// DELETE /api/v1/admin/stories/{id}
func (h *StoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteStory(r.Context(), id); err != nil {
		h.writeStoryError(w, r, err)
		return
	}
	h.logger.Info("story deleted", "story_id", id)
	writeMessage(w, http.StatusOK, "Story deleted")
}

// apply validates in and copies it onto story. The slug is resolved against
// existing stories and published_at is stamped the first time the story is
// published.
func (h *StoryHandler) apply(ctx context.Context, story *model.Story, in StoryInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	if err := validate.Struct(in); err != nil {
		return err
	}

	explicit := in.Slug != ""
	var slug string
	switch {
	case explicit:
		slug = slugify(in.Slug)
		if slug == "" {
			return validate.Fieldf("slug", "must contain letters or digits")
		}
	case story.Slug != "":
		slug = story.Slug
	default:
		slug = slugify(in.Title)
		if slug == "" {
			slug = "story"
		}
	}
	taken, err := h.store.SlugExists(ctx, slug, story.ID)
	if err != nil {
		return err
	}
	if taken {
		if explicit {
			return validate.Fieldf("slug", "is already in use")
		}
		slug = slug + "-" + uuid.NewString()[:8]
	}

	story.Title = in.Title
	story.Slug = slug
	story.Excerpt = in.Excerpt
	story.Content = in.Content
	story.Author = in.Author
	story.CoverImageURL = in.CoverImageURL
	if in.Status != "" {
		story.Status = in.Status
	}
	if in.IsFeatured != nil {
		story.IsFeatured = *in.IsFeatured
	}
	if story.Status == model.StoryPublished && story.PublishedAt == nil {
		now := h.now().UTC()
		story.PublishedAt = &now
	}
	return nil
}

func (h *StoryHandler) writeStoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, config.ErrNotFound):
		writeError(w, http.StatusNotFound, "Story not found")
	case errors.Is(err, config.ErrDuplicate):
		writeError(w, http.StatusConflict, "A story with this slug already exists")
	default:
		writeServiceError(w, r, h.logger, err)
	}
}

// slugify lower-cases s and joins its ASCII letter and digit runs with
// hyphens.
func slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	slug := b.String()
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}
