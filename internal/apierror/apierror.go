// Package apierror provides the JSON error envelopes returned by the API.
// Handlers never serialize raw service or database errors; they go through here.
package apierror

// APIError is the envelope for every 4xx/5xx response without field details.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError carries per-field messages for 422 responses.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

// NewValidationMsg is NewValidation with a custom headline.
func NewValidationMsg(msg string, fields map[string]string) *ValidationError {
	if msg == "" {
		msg = "Error de validacion"
	}
	if fields == nil {
		fields = map[string]string{}
	}
	return &ValidationError{Detail: msg, Fields: fields}
}
