// Package openapi builds the OpenAPI 3.1 document served at /openapi.json
// from the router's route catalog.
package openapi

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"

	"github.com/storydesk/storydesk/internal/model"
)

// Envelope describes how a route wraps its success payload.
type Envelope int

const (
	// EnvelopeData wraps the payload as {"success": true, "data": ...}.
	EnvelopeData Envelope = iota
	// EnvelopeList wraps an array as {"success": true, "data": [...], "meta": {...}}.
	EnvelopeList
	// EnvelopeRaw returns the schema as-is.
	EnvelopeRaw
	// EnvelopeNone has no body beyond {"success": true, "message": ...}.
	EnvelopeNone
)

// Route documents one HTTP operation.
type Route struct {
	Method   string
	Path     string
	Summary  string
	Tag      string
	Roles    []model.Role // nil for public routes
	Request  string       // component schema name of the JSON body, if any
	Response string       // component schema name of the payload
	Envelope Envelope
	Status   int // success status, default 200
	Query    []QueryParam
	Limited  bool   // rate limited
	Produces string // alternate success content type, e.g. text/csv
}

// QueryParam documents a query string parameter.
type QueryParam struct {
	Name        string
	Type        string // "string", "integer" or "boolean"
	Description string
}

// Info holds document-level metadata.
type Info struct {
	Title       string
	Description string
	Version     string
	ServerURL   string
}

var pathParamRegex = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Generate builds the document for routes. components maps schema names to
// example values whose Go types are reflected into JSON schemas.
func Generate(info Info, routes []Route, components map[string]interface{}) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       info.Title,
			Description: info.Description,
			Version:     info.Version,
		},
	}
	if info.ServerURL != "" {
		doc.Servers = openapi3.Servers{{URL: info.ServerURL}}
	}

	comps := openapi3.NewComponents()
	comps.Schemas = openapi3.Schemas{}
	comps.SecuritySchemes = openapi3.SecuritySchemes{
		"bearerAuth": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
			},
		},
	}
	doc.Components = &comps

	all := map[string]interface{}{
		"ErrorResponse": model.ErrorResponse{},
		"ResponseMeta":  model.ResponseMeta{},
	}
	for name, v := range components {
		all[name] = v
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ref, err := openapi3gen.NewSchemaRefForValue(all[name], comps.Schemas)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		comps.Schemas[name] = ref
	}

	doc.Paths = openapi3.NewPaths()
	for _, rt := range routes {
		if err := addRoute(doc, rt); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func addRoute(doc *openapi3.T, rt Route) error {
	for _, name := range []string{rt.Request, rt.Response} {
		if name != "" && doc.Components.Schemas[name] == nil {
			return fmt.Errorf("route %s %s: unknown schema %q", rt.Method, rt.Path, name)
		}
	}

	op := &openapi3.Operation{
		Tags:        []string{rt.Tag},
		Summary:     rt.Summary,
		OperationID: operationID(rt.Method, rt.Path),
	}

	for _, m := range pathParamRegex.FindAllStringSubmatch(rt.Path, -1) {
		typ := "string"
		if m[1] == "id" {
			typ = "integer"
		}
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewPathParameter(m[1]).WithSchema(&openapi3.Schema{Type: &openapi3.Types{typ}}),
		})
	}
	for _, q := range rt.Query {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(q.Name).
				WithDescription(q.Description).
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{q.Type}}),
		})
	}

	if rt.Request != "" {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(componentRef(rt.Request)),
		}
	}

	if rt.Roles != nil {
		op.Security = &openapi3.SecurityRequirements{{"bearerAuth": {}}}
		roles := make([]string, len(rt.Roles))
		for i, r := range rt.Roles {
			roles[i] = string(r)
		}
		op.Description = "Requires role: " + strings.Join(roles, ", ") + "."
	}

	op.Responses = responses(rt)
	doc.AddOperation(rt.Path, rt.Method, op)
	return nil
}

func responses(rt Route) *openapi3.Responses {
	status := rt.Status
	if status == 0 {
		status = http.StatusOK
	}
	resps := openapi3.NewResponses()

	desc := http.StatusText(status)
	var content openapi3.Content
	if rt.Produces != "" {
		content = openapi3.Content{rt.Produces: openapi3.NewMediaType().WithSchema(openapi3.NewStringSchema())}
	} else {
		content = openapi3.NewContentWithJSONSchemaRef(successSchema(rt))
	}
	resps.Set(strconv.Itoa(status), &openapi3.ResponseRef{
		Value: &openapi3.Response{Description: &desc, Content: content},
	})

	errs := []int{http.StatusInternalServerError}
	if rt.Request != "" || len(rt.Query) > 0 {
		errs = append(errs, http.StatusBadRequest)
	}
	if rt.Roles != nil {
		errs = append(errs, http.StatusUnauthorized, http.StatusForbidden)
	}
	if strings.Contains(rt.Path, "{") {
		errs = append(errs, http.StatusNotFound)
	}
	if rt.Limited {
		errs = append(errs, http.StatusTooManyRequests)
	}
	for _, code := range errs {
		d := http.StatusText(code)
		resps.Set(strconv.Itoa(code), &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(componentRef("ErrorResponse")),
			},
		})
	}
	return resps
}

func successSchema(rt Route) *openapi3.SchemaRef {
	success := openapi3.NewBoolSchema().NewRef()
	switch rt.Envelope {
	case EnvelopeRaw:
		return componentRef(rt.Response)
	case EnvelopeList:
		items := openapi3.NewArraySchema()
		items.Items = componentRef(rt.Response)
		return openapi3.NewObjectSchema().
			WithPropertyRef("success", success).
			WithPropertyRef("data", items.NewRef()).
			WithPropertyRef("meta", componentRef("ResponseMeta")).NewRef()
	case EnvelopeNone:
		return openapi3.NewObjectSchema().
			WithPropertyRef("success", success).
			WithProperty("message", openapi3.NewStringSchema()).NewRef()
	default:
		s := openapi3.NewObjectSchema().WithPropertyRef("success", success)
		if rt.Response != "" {
			s = s.WithPropertyRef("data", componentRef(rt.Response))
		}
		return s.NewRef()
	}
}

func componentRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

// operationID derives a stable id like "patch_admin_waitlist_by_id".
func operationID(method, path string) string {
	path = strings.TrimPrefix(path, "/api/v1")
	path = pathParamRegex.ReplaceAllString(path, "by_$1")
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimRight(strings.ReplaceAll(b.String(), "__", "_"), "_")
}
