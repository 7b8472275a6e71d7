package graphql

import (
	"encoding/json"
	"strings"
)

// Response represents a GraphQL response envelope
type Response struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     []*Error        `json:"errors,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`
}

// Error represents one entry of the response error array
type Error struct {
	Message    string          `json:"message"`
	Path       []any           `json:"path,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// HasErrors returns true if the envelope carries application-level errors
func (r *Response) HasErrors() bool {
	return len(r.Errors) > 0
}

// DataIsNull returns true if the response data is absent or JSON null
func (r *Response) DataIsNull() bool {
	if r == nil || len(r.Data) == 0 {
		return true
	}
	return string(r.Data) == "null"
}

// ParseResponse parses a GraphQL response envelope from bytes
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Bytes returns the response as JSON bytes
func (r *Response) Bytes() ([]byte, error) {
	return json.Marshal(r)
}

// ResponseError wraps the error array of an otherwise well-formed
// response. The upstream answered; retrying cannot change the outcome.
type ResponseError struct {
	Response *Response
}

// Error implements the error interface
func (e *ResponseError) Error() string {
	if e.Response == nil || len(e.Response.Errors) == 0 {
		return "graphql: unknown response error"
	}
	msgs := make([]string, 0, len(e.Response.Errors))
	for _, ge := range e.Response.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// NewResponseError creates a ResponseError for a response with errors
func NewResponseError(resp *Response) *ResponseError {
	return &ResponseError{Response: resp}
}
