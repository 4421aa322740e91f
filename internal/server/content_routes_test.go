package server

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/storydesk/storydesk/internal/model"
)

type storyResp struct {
	Data model.Story `json:"data"`
}

type listResp[T any] struct {
	Success bool               `json:"success"`
	Data    []T                `json:"data"`
	Meta    model.ResponseMeta `json:"meta"`
}

func (e *testEnv) createStory(t *testing.T, token string, body map[string]interface{}) model.Story {
	t.Helper()
	rr := e.do(t, "POST", "/api/v1/admin/stories", jsonBody(t, body), token)
	assertStatus(t, rr, http.StatusCreated)
	var resp storyResp
	decodeJSON(t, rr, &resp)
	return resp.Data
}

// ---------------------------------------------------------------------------
// Stories
// ---------------------------------------------------------------------------

func TestStories_CreateGeneratesSlugAndPublishedAt(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, model.RoleEditor)

	draft := env.createStory(t, token, map[string]interface{}{
		"title":   "Hello, World!",
		"content": "Body",
	})
	if draft.Slug != "hello-world" {
		t.Errorf("slug = %q, want hello-world", draft.Slug)
	}
	if draft.Status != model.StoryDraft || draft.PublishedAt != nil {
		t.Errorf("draft status=%q published_at=%v", draft.Status, draft.PublishedAt)
	}
	if draft.CreatedBy == nil {
		t.Error("expected created_by to be set")
	}

	// Same title again gets a suffixed slug rather than a conflict.
	dup := env.createStory(t, token, map[string]interface{}{
		"title":   "Hello World",
		"content": "Other body",
		"status":  "published",
	})
	if dup.Slug == "hello-world" || !strings.HasPrefix(dup.Slug, "hello-world-") {
		t.Errorf("duplicate slug = %q", dup.Slug)
	}
	if dup.PublishedAt == nil {
		t.Error("expected published_at on published story")
	}

	// An explicit slug that collides is rejected.
	rr := env.do(t, "POST", "/api/v1/admin/stories", jsonBody(t, map[string]interface{}{
		"title": "Third", "content": "x", "slug": "hello-world",
	}), token)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestStories_Validation(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, model.RoleEditor)

	rr := env.do(t, "POST", "/api/v1/admin/stories", jsonBody(t, map[string]interface{}{
		"status":          "live",
		"cover_image_url": "not a url",
	}), token)
	assertStatus(t, rr, http.StatusBadRequest)

	fields := map[string]bool{}
	for _, f := range errorBody(t, rr).Errors {
		fields[f.Field] = true
	}
	for _, want := range []string{"title", "content", "status", "cover_image_url"} {
		if !fields[want] {
			t.Errorf("missing field error for %s", want)
		}
	}
}

func TestStories_PublishKeepsFirstPublishedAt(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, model.RoleEditor)

	s := env.createStory(t, token, map[string]interface{}{"title": "Launch", "content": "x", "status": "published"})
	path := "/api/v1/admin/stories/" + strconv.FormatInt(s.ID, 10)

	rr := env.do(t, "PUT", path, jsonBody(t, map[string]interface{}{
		"title": "Launch (edited)", "content": "y", "status": "published",
	}), token)
	assertStatus(t, rr, http.StatusOK)
	var resp storyResp
	decodeJSON(t, rr, &resp)
	if resp.Data.PublishedAt == nil || !resp.Data.PublishedAt.Truncate(time.Second).Equal(s.PublishedAt.Truncate(time.Second)) {
		t.Errorf("published_at changed: %v -> %v", s.PublishedAt, resp.Data.PublishedAt)
	}
	if resp.Data.Slug != s.Slug {
		t.Errorf("slug changed on update: %q -> %q", s.Slug, resp.Data.Slug)
	}
	if resp.Data.Title != "Launch (edited)" {
		t.Errorf("title = %q", resp.Data.Title)
	}
}

func TestStories_PublicOnlySeesPublished(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, model.RoleEditor)

	env.createStory(t, token, map[string]interface{}{"title": "Draft one", "content": "x"})
	env.createStory(t, token, map[string]interface{}{"title": "Live one", "content": "x", "status": "published"})
	env.createStory(t, token, map[string]interface{}{"title": "Live featured", "content": "x", "status": "published", "is_featured": true})

	rr := env.do(t, "GET", "/api/v1/stories", nil, "")
	assertStatus(t, rr, http.StatusOK)
	var all listResp[model.Story]
	decodeJSON(t, rr, &all)
	if all.Meta.Total != 2 {
		t.Errorf("public total = %d, want 2", all.Meta.Total)
	}

	rr = env.do(t, "GET", "/api/v1/stories?featured=true", nil, "")
	assertStatus(t, rr, http.StatusOK)
	var featured listResp[model.Story]
	decodeJSON(t, rr, &featured)
	if len(featured.Data) != 1 || featured.Data[0].Slug != "live-featured" {
		t.Errorf("featured = %+v", featured.Data)
	}

	rr = env.do(t, "GET", "/api/v1/stories/live-one", nil, "")
	assertStatus(t, rr, http.StatusOK)
	rr = env.do(t, "GET", "/api/v1/stories/draft-one", nil, "")
	assertStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, "GET", "/api/v1/admin/stories", nil, token)
	assertStatus(t, rr, http.StatusOK)
	var admin listResp[model.Story]
	decodeJSON(t, rr, &admin)
	if admin.Meta.Total != 3 {
		t.Errorf("admin total = %d, want 3", admin.Meta.Total)
	}
}

func TestStories_AdminListQueryValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, model.RoleEditor)

	rr := env.do(t, "GET", "/api/v1/admin/stories?order=password_hash&status=live", nil, token)
	assertStatus(t, rr, http.StatusBadRequest)
	if n := len(errorBody(t, rr).Errors); n != 2 {
		t.Errorf("expected 2 field errors, got %d", n)
	}

	rr = env.do(t, "GET", "/api/v1/admin/stories?order=-title&limit=1&page=2", nil, token)
	assertStatus(t, rr, http.StatusOK)
}

func TestStories_DeleteRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	editor := env.tokenFor(t, model.RoleEditor)
	admin := env.tokenFor(t, model.RoleAdmin)

	s := env.createStory(t, editor, map[string]interface{}{"title": "Doomed", "content": "x"})
	path := "/api/v1/admin/stories/" + strconv.FormatInt(s.ID, 10)

	rr := env.do(t, "DELETE", path, nil, editor)
	assertStatus(t, rr, http.StatusForbidden)

	rr = env.do(t, "DELETE", path, nil, admin)
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", path, nil, admin)
	assertStatus(t, rr, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Waitlist
// ---------------------------------------------------------------------------

func TestWaitlist_JoinAndDuplicate(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/waitlist", jsonBody(t, map[string]string{
		"email": "Fan@Example.com", "name": "Fan", "source": "landing",
	}), "")
	assertStatus(t, rr, http.StatusCreated)

	rr = env.do(t, "POST", "/api/v1/waitlist", jsonBody(t, map[string]string{"email": "fan@example.com"}), "")
	assertStatus(t, rr, http.StatusConflict)

	rr = env.do(t, "POST", "/api/v1/waitlist", jsonBody(t, map[string]string{"email": "nope"}), "")
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestWaitlist_AdminFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, model.RoleAdmin)

	for _, email := range []string{"a@example.com", "b@example.com", "=cmd@example.com"} {
		rr := env.do(t, "POST", "/api/v1/waitlist", jsonBody(t, map[string]string{"email": email}), "")
		assertStatus(t, rr, http.StatusCreated)
	}

	rr := env.do(t, "GET", "/api/v1/admin/waitlist", nil, "")
	assertStatus(t, rr, http.StatusUnauthorized)

	rr = env.do(t, "GET", "/api/v1/admin/waitlist?limit=2", nil, token)
	assertStatus(t, rr, http.StatusOK)
	var list listResp[model.WaitlistEntry]
	decodeJSON(t, rr, &list)
	if len(list.Data) != 2 || list.Meta.Total != 3 || list.Meta.Pages != 2 {
		t.Errorf("page = %d items, meta = %+v", len(list.Data), list.Meta)
	}

	id := strconv.FormatInt(list.Data[0].ID, 10)
	rr = env.do(t, "PATCH", "/api/v1/admin/waitlist/"+id, jsonBody(t, map[string]string{"status": "invited"}), token)
	assertStatus(t, rr, http.StatusOK)
	rr = env.do(t, "PATCH", "/api/v1/admin/waitlist/"+id, jsonBody(t, map[string]string{"status": "vip"}), token)
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "GET", "/api/v1/admin/waitlist?status=invited", nil, token)
	assertStatus(t, rr, http.StatusOK)
	var invited listResp[model.WaitlistEntry]
	decodeJSON(t, rr, &invited)
	if invited.Meta.Total != 1 {
		t.Errorf("invited total = %d, want 1", invited.Meta.Total)
	}

	rr = env.do(t, "GET", "/api/v1/admin/waitlist/export", nil, token)
	assertStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content-type = %q", ct)
	}
	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("csv rows = %d, want 4 (header + 3)", len(records))
	}
	for _, rec := range records[1:] {
		if strings.HasPrefix(rec[1], "=") {
			t.Errorf("formula not neutralized: %q", rec[1])
		}
	}

	rr = env.do(t, "DELETE", "/api/v1/admin/waitlist/"+id, nil, token)
	assertStatus(t, rr, http.StatusOK)
	rr = env.do(t, "DELETE", "/api/v1/admin/waitlist/"+id, nil, token)
	assertStatus(t, rr, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

func TestContacts_Flow(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, model.RoleEditor)

	rr := env.do(t, "POST", "/api/v1/contact", jsonBody(t, map[string]string{
		"name": "Sam", "email": "sam@example.com", "subject": "Hi", "message": "Hello there",
	}), "")
	assertStatus(t, rr, http.StatusCreated)
	var created struct {
		Data model.ContactSubmission `json:"data"`
	}
	decodeJSON(t, rr, &created)
	if created.Data.Status != model.ContactNew {
		t.Errorf("status = %q, want new", created.Data.Status)
	}

	rr = env.do(t, "POST", "/api/v1/contact", jsonBody(t, map[string]string{"email": "bad"}), "")
	assertStatus(t, rr, http.StatusBadRequest)
	if n := len(errorBody(t, rr).Errors); n != 3 {
		t.Errorf("expected 3 field errors (name, email, message), got %d", n)
	}

	path := "/api/v1/admin/contacts/" + strconv.FormatInt(created.Data.ID, 10)
	rr = env.do(t, "GET", path, nil, token)
	assertStatus(t, rr, http.StatusOK)
	var got struct {
		Data model.ContactSubmission `json:"data"`
	}
	decodeJSON(t, rr, &got)
	if got.Data.Status != model.ContactRead {
		t.Errorf("status after open = %q, want read", got.Data.Status)
	}

	rr = env.do(t, "PATCH", path, jsonBody(t, map[string]string{"status": "replied"}), token)
	assertStatus(t, rr, http.StatusOK)

	// Opening a replied message does not move it back to read.
	rr = env.do(t, "GET", path, nil, token)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &got)
	if got.Data.Status != model.ContactReplied {
		t.Errorf("status = %q, want replied", got.Data.Status)
	}

	rr = env.do(t, "GET", "/api/v1/admin/contacts?status=replied", nil, token)
	assertStatus(t, rr, http.StatusOK)
	var list listResp[model.ContactSubmission]
	decodeJSON(t, rr, &list)
	if list.Meta.Total != 1 {
		t.Errorf("replied total = %d, want 1", list.Meta.Total)
	}

	rr = env.do(t, "DELETE", path, nil, token)
	assertStatus(t, rr, http.StatusForbidden)
}

// ---------------------------------------------------------------------------
// Dashboard
// ---------------------------------------------------------------------------

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, model.RoleEditor)
	ctx := context.Background()

	env.createStory(t, token, map[string]interface{}{"title": "One", "content": "x", "status": "published"})
	env.createStory(t, token, map[string]interface{}{"title": "Two", "content": "x"})
	if err := env.store.CreateWaitlistEntry(ctx, &model.WaitlistEntry{Email: "w@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := env.store.CreateContact(ctx, &model.ContactSubmission{Name: "n", Email: "c@example.com", Message: "m"}); err != nil {
		t.Fatal(err)
	}

	rr := env.do(t, "GET", "/api/v1/admin/dashboard/stats", nil, token)
	assertStatus(t, rr, http.StatusOK)
	var stats struct {
		Data model.DashboardStats `json:"data"`
	}
	decodeJSON(t, rr, &stats)
	if stats.Data.Stories.Total != 2 || stats.Data.Stories.ByStatus["published"] != 1 {
		t.Errorf("stories = %+v", stats.Data.Stories)
	}
	if stats.Data.Waitlist.Total != 1 || stats.Data.Contacts.Total != 1 || stats.Data.ActiveAdmins != 1 {
		t.Errorf("stats = %+v", stats.Data)
	}

	rr = env.do(t, "GET", "/api/v1/admin/dashboard/analytics?days=7", nil, token)
	assertStatus(t, rr, http.StatusOK)
	var an struct {
		Data model.Analytics `json:"data"`
	}
	decodeJSON(t, rr, &an)
	if an.Data.Days != 7 || len(an.Data.WaitlistSignups) != 7 || len(an.Data.ContactMessages) != 7 {
		t.Errorf("analytics days=%d signups=%d messages=%d", an.Data.Days, len(an.Data.WaitlistSignups), len(an.Data.ContactMessages))
	}
	var sum int64
	for _, d := range an.Data.WaitlistSignups {
		sum += d.Count
	}
	if sum != 1 {
		t.Errorf("signup sum = %d, want 1", sum)
	}
	if len(an.Data.RecentWaitlist) != 1 || len(an.Data.RecentContacts) != 1 {
		t.Errorf("recent = %d/%d", len(an.Data.RecentWaitlist), len(an.Data.RecentContacts))
	}

	for _, bad := range []string{"0", "366", "abc"} {
		rr = env.do(t, "GET", "/api/v1/admin/dashboard/analytics?days="+bad, nil, token)
		assertStatus(t, rr, http.StatusBadRequest)
	}
}
