package openapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/storydesk/storydesk/internal/model"
)

func testRoutes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/api/v1/stories", Summary: "List published stories", Tag: "stories",
			Response: "Story", Envelope: EnvelopeList,
			Query: []QueryParam{{Name: "page", Type: "integer"}, {Name: "featured", Type: "boolean"}}},
		{Method: http.MethodDelete, Path: "/api/v1/admin/stories/{id}", Summary: "Delete a story", Tag: "stories",
			Roles: []model.Role{model.RoleAdmin, model.RoleSuperAdmin}, Envelope: EnvelopeNone},
		{Method: http.MethodPost, Path: "/api/v1/waitlist", Summary: "Join the waitlist", Tag: "waitlist",
			Request: "WaitlistEntry", Response: "WaitlistEntry", Status: http.StatusCreated, Limited: true},
	}
}

func TestGenerateBuildsPathsAndSchemas(t *testing.T) {
	doc, err := Generate(Info{Title: "Test API", Version: "1.0.0"}, testRoutes(), map[string]interface{}{
		"Story":         model.Story{},
		"WaitlistEntry": model.WaitlistEntry{},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, name := range []string{"Story", "WaitlistEntry", "ErrorResponse", "ResponseMeta"} {
		if doc.Components.Schemas[name] == nil {
			t.Errorf("missing component schema %s", name)
		}
	}

	item := doc.Paths.Find("/api/v1/admin/stories/{id}")
	if item == nil || item.Delete == nil {
		t.Fatal("missing DELETE /api/v1/admin/stories/{id}")
	}
	del := item.Delete
	if del.Security == nil || len(*del.Security) != 1 {
		t.Error("expected bearer security on protected route")
	}
	if len(del.Parameters) != 1 || del.Parameters[0].Value.Name != "id" {
		t.Errorf("expected id path parameter, got %+v", del.Parameters)
	}
	for _, code := range []int{200, 401, 403, 404, 500} {
		if del.Responses.Status(code) == nil {
			t.Errorf("DELETE missing %d response", code)
		}
	}
	if del.OperationID != "delete_admin_stories_by_id" {
		t.Errorf("operationId = %q", del.OperationID)
	}

	post := doc.Paths.Find("/api/v1/waitlist").Post
	if post.RequestBody == nil {
		t.Error("expected request body on POST /waitlist")
	}
	if post.Responses.Status(201) == nil || post.Responses.Status(429) == nil {
		t.Error("expected 201 and 429 responses on POST /waitlist")
	}
	if post.Security != nil {
		t.Error("public route should not require security")
	}
}

func TestGenerateRejectsUnknownSchema(t *testing.T) {
	routes := []Route{{Method: http.MethodGet, Path: "/x", Tag: "x", Response: "Nope"}}
	if _, err := Generate(Info{Title: "x"}, routes, nil); err == nil {
		t.Fatal("expected error for unknown schema")
	}
}

func TestGeneratedDocumentMarshals(t *testing.T) {
	doc, err := Generate(Info{Title: "Test API", Version: "1.0.0"}, testRoutes(), map[string]interface{}{
		"Story":         model.Story{},
		"WaitlistEntry": model.WaitlistEntry{},
	})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	if generic["openapi"] != "3.1.0" {
		t.Errorf("openapi = %v", generic["openapi"])
	}
}

func TestOperationID(t *testing.T) {
	cases := map[string]string{
		"GET /api/v1/stories/{slug}":       "get_stories_by_slug",
		"PATCH /api/v1/admins/{id}/status": "patch_admins_by_id_status",
		"GET /healthz":                     "get_healthz",
	}
	for in, want := range cases {
		var method, path string
		for i := range in {
			if in[i] == ' ' {
				method, path = in[:i], in[i+1:]
				break
			}
		}
		if got := operationID(method, path); got != want {
			t.Errorf("operationID(%q) = %q, want %q", in, got, want)
		}
	}
}
