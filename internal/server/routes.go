package server

import (
	"net/http"

	"github.com/storydesk/storydesk/internal/handler"
	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/openapi"
)

// endpoint binds one route to its handler, access policy and documentation.
type endpoint struct {
	method  string
	path    string
	handler http.HandlerFunc
	roles   []model.Role // nil for public routes
	limit   int          // requests per minute per IP, 0 for none
	doc     openapi.Route
}

var (
	anyAdmin   = model.AllRoles
	adminPlus  = []model.Role{model.RoleAdmin, model.RoleSuperAdmin}
	superAdmin = []model.Role{model.RoleSuperAdmin}
)

var pagingParams = []openapi.QueryParam{
	{Name: "page", Type: "integer", Description: "1-based page number"},
	{Name: "limit", Type: "integer", Description: "Page size (max 100)"},
}

func withPaging(extra ...openapi.QueryParam) []openapi.QueryParam {
	return append(append([]openapi.QueryParam{}, pagingParams...), extra...)
}

func (s *Server) endpoints() []endpoint {
	authH := handler.NewAuthHandler(s.authSvc, s.logger)
	adminH := handler.NewAdminHandler(s.authSvc, s.logger)
	storyH := handler.NewStoryHandler(s.store, s.logger)
	waitH := handler.NewWaitlistHandler(s.store, s.logger)
	contactH := handler.NewContactHandler(s.store, s.logger)
	dashH := handler.NewDashboardHandler(s.store, s.logger)

	login := s.cfg.LoginRateLimit
	public := s.cfg.PublicRateLimit
	status := openapi.QueryParam{Name: "status", Type: "string", Description: "Filter by status"}
	search := openapi.QueryParam{Name: "search", Type: "string", Description: "Case-insensitive text search"}

	return []endpoint{
		// Authentication
		{method: "POST", path: "/auth/login", handler: authH.Login, limit: login,
			doc: openapi.Route{Tag: "auth", Summary: "Log in with email and password",
				Request: "LoginRequest", Response: "LoginResponse", Envelope: openapi.EnvelopeRaw}},
		{method: "POST", path: "/auth/setup", handler: authH.Setup, limit: login,
			doc: openapi.Route{Tag: "auth", Summary: "Create the first super_admin",
				Request: "RegisterRequest", Response: "Admin", Status: http.StatusCreated}},
		{method: "GET", path: "/auth/me", handler: authH.Me, roles: anyAdmin,
			doc: openapi.Route{Tag: "auth", Summary: "Current admin", Response: "Admin"}},
		{method: "PUT", path: "/auth/update-password", handler: authH.UpdatePassword, roles: anyAdmin,
			doc: openapi.Route{Tag: "auth", Summary: "Change own password",
				Request: "ChangePasswordRequest", Envelope: openapi.EnvelopeNone}},
		{method: "POST", path: "/auth/logout", handler: authH.Logout, roles: anyAdmin,
			doc: openapi.Route{Tag: "auth", Summary: "Log out (client discards token)", Envelope: openapi.EnvelopeNone}},

		// Admin management
		{method: "GET", path: "/admins", handler: adminH.List, roles: superAdmin,
			doc: openapi.Route{Tag: "admins", Summary: "List admins", Response: "Admin", Envelope: openapi.EnvelopeList}},
		{method: "POST", path: "/admins", handler: adminH.Create, roles: superAdmin,
			doc: openapi.Route{Tag: "admins", Summary: "Create an admin",
				Request: "RegisterRequest", Response: "Admin", Status: http.StatusCreated}},
		{method: "PATCH", path: "/admins/{id}/status", handler: adminH.SetStatus, roles: superAdmin,
			doc: openapi.Route{Tag: "admins", Summary: "Activate or deactivate an admin",
				Request: "AdminStatusRequest", Response: "Admin"}},
		{method: "PATCH", path: "/admins/{id}/role", handler: adminH.SetRole, roles: superAdmin,
			doc: openapi.Route{Tag: "admins", Summary: "Change an admin's role",
				Request: "AdminRoleRequest", Response: "Admin"}},

		// Public content
		{method: "GET", path: "/stories", handler: storyH.PublicList,
			doc: openapi.Route{Tag: "stories", Summary: "List published stories", Response: "Story",
				Envelope: openapi.EnvelopeList,
				Query:    withPaging(openapi.QueryParam{Name: "featured", Type: "boolean", Description: "Only featured stories"})}},
		{method: "GET", path: "/stories/{slug}", handler: storyH.PublicGet,
			doc: openapi.Route{Tag: "stories", Summary: "Get a published story", Response: "Story"}},
		{method: "POST", path: "/waitlist", handler: waitH.Join, limit: public,
			doc: openapi.Route{Tag: "waitlist", Summary: "Join the waitlist",
				Request: "WaitlistRequest", Response: "WaitlistEntry", Status: http.StatusCreated}},
		{method: "POST", path: "/contact", handler: contactH.Submit, limit: public,
			doc: openapi.Route{Tag: "contacts", Summary: "Send a contact message",
				Request: "ContactRequest", Response: "ContactSubmission", Status: http.StatusCreated}},

		// Story editor
		{method: "GET", path: "/admin/stories", handler: storyH.List, roles: anyAdmin,
			doc: openapi.Route{Tag: "stories", Summary: "List stories in any status", Response: "Story",
				Envelope: openapi.EnvelopeList,
				Query: withPaging(status, search,
					openapi.QueryParam{Name: "featured", Type: "boolean", Description: "Filter by featured flag"},
					openapi.QueryParam{Name: "order", Type: "string", Description: "column [asc|desc] or -column"})}},
		{method: "POST", path: "/admin/stories", handler: storyH.Create, roles: anyAdmin,
			doc: openapi.Route{Tag: "stories", Summary: "Create a story",
				Request: "StoryInput", Response: "Story", Status: http.StatusCreated}},
		{method: "GET", path: "/admin/stories/{id}", handler: storyH.Get, roles: anyAdmin,
			doc: openapi.Route{Tag: "stories", Summary: "Get a story", Response: "Story"}},
		{method: "PUT", path: "/admin/stories/{id}", handler: storyH.Update, roles: anyAdmin,
			doc: openapi.Route{Tag: "stories", Summary: "Replace a story", Request: "StoryInput", Response: "Story"}},
		{method: "DELETE", path: "/admin/stories/{id}", handler: storyH.Delete, roles: adminPlus,
			doc: openapi.Route{Tag: "stories", Summary: "Delete a story", Envelope: openapi.EnvelopeNone}},

		// Waitlist inbox
		{method: "GET", path: "/admin/waitlist", handler: waitH.List, roles: anyAdmin,
			doc: openapi.Route{Tag: "waitlist", Summary: "List waitlist entries", Response: "WaitlistEntry",
				Envelope: openapi.EnvelopeList, Query: withPaging(status, search)}},
		{method: "GET", path: "/admin/waitlist/export", handler: waitH.Export, roles: anyAdmin,
			doc: openapi.Route{Tag: "waitlist", Summary: "Export waitlist as CSV",
				Produces: "text/csv", Query: []openapi.QueryParam{status, search}}},
		{method: "PATCH", path: "/admin/waitlist/{id}", handler: waitH.UpdateStatus, roles: anyAdmin,
			doc: openapi.Route{Tag: "waitlist", Summary: "Update entry status",
				Request: "WaitlistStatusRequest", Response: "WaitlistEntry"}},
		{method: "DELETE", path: "/admin/waitlist/{id}", handler: waitH.Delete, roles: adminPlus,
			doc: openapi.Route{Tag: "waitlist", Summary: "Delete an entry", Envelope: openapi.EnvelopeNone}},

		// Contact inbox
		{method: "GET", path: "/admin/contacts", handler: contactH.List, roles: anyAdmin,
			doc: openapi.Route{Tag: "contacts", Summary: "List contact submissions", Response: "ContactSubmission",
				Envelope: openapi.EnvelopeList, Query: withPaging(status, search)}},
		{method: "GET", path: "/admin/contacts/{id}", handler: contactH.Get, roles: anyAdmin,
			doc: openapi.Route{Tag: "contacts", Summary: "Read a submission (marks it read)", Response: "ContactSubmission"}},
		{method: "PATCH", path: "/admin/contacts/{id}", handler: contactH.UpdateStatus, roles: anyAdmin,
			doc: openapi.Route{Tag: "contacts", Summary: "Update submission status",
				Request: "ContactStatusRequest", Response: "ContactSubmission"}},
		{method: "DELETE", path: "/admin/contacts/{id}", handler: contactH.Delete, roles: adminPlus,
			doc: openapi.Route{Tag: "contacts", Summary: "Delete a submission", Envelope: openapi.EnvelopeNone}},

		// Dashboard
		{method: "GET", path: "/admin/dashboard/stats", handler: dashH.Stats, roles: anyAdmin,
			doc: openapi.Route{Tag: "dashboard", Summary: "Totals by resource and status", Response: "DashboardStats"}},
		{method: "GET", path: "/admin/dashboard/analytics", handler: dashH.Analytics, roles: anyAdmin,
			doc: openapi.Route{Tag: "dashboard", Summary: "Daily activity for the last N days", Response: "Analytics",
				Query: []openapi.QueryParam{{Name: "days", Type: "integer", Description: "1 to 365, default 30"}}}},
	}
}

// catalog returns the OpenAPI description of eps.
func catalog(eps []endpoint) []openapi.Route {
	routes := make([]openapi.Route, len(eps))
	for i, ep := range eps {
		rt := ep.doc
		rt.Method = ep.method
		rt.Path = apiPrefix + ep.path
		rt.Roles = ep.roles
		rt.Limited = ep.limit > 0
		routes[i] = rt
	}
	return routes
}
