package model

// ListResponse is the standard envelope for paginated list endpoints.
type ListResponse struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta contains pagination information for list responses.
type ResponseMeta struct {
	Count int   `json:"count"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// ErrorResponse is the standard envelope for error responses. Validation
// failures list every offending field in Errors.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Page describes a requested page of results.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the zero-based row offset for the page.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// DataResponse is the standard envelope for single-object responses.
type DataResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
