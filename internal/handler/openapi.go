package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/service"
)

// OpenAPIComponents returns the request and response types referenced by
// the route catalog, keyed by component schema name.
func OpenAPIComponents() map[string]interface{} {
	return map[string]interface{}{
		"Admin":                 model.Admin{},
		"Story":                 model.Story{},
		"WaitlistEntry":         model.WaitlistEntry{},
		"ContactSubmission":     model.ContactSubmission{},
		"DashboardStats":        model.DashboardStats{},
		"Analytics":             model.Analytics{},
		"LoginRequest":          LoginRequest{},
		"LoginResponse":         LoginResponse{},
		"ChangePasswordRequest": ChangePasswordRequest{},
		"RegisterRequest":       service.RegisterInput{},
		"AdminStatusRequest":    AdminStatusRequest{},
		"AdminRoleRequest":      AdminRoleRequest{},
		"StoryInput":            StoryInput{},
		"WaitlistRequest":       WaitlistRequest{},
		"WaitlistStatusRequest": WaitlistStatusRequest{},
		"ContactRequest":        ContactRequest{},
		"ContactStatusRequest":  ContactStatusRequest{},
	}
}

// OpenAPIHandler serves a pre-rendered OpenAPI document.
type OpenAPIHandler struct {
	body []byte
}

// NewOpenAPIHandler renders doc once so each request is a plain write.
func NewOpenAPIHandler(doc *openapi3.T) (*OpenAPIHandler, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("render openapi document: %w", err)
	}
	return &OpenAPIHandler{body: body}, nil
}

// ServeSpec writes the document.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.body)
}
