package graphql

import (
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Request represents a single GraphQL request payload
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// NewRequest creates a new GraphQL request
func NewRequest(query string, variables map[string]any) *Request {
	return &Request{
		Query:     query,
		Variables: variables,
	}
}

// Validate checks if the request is well-formed
func (r *Request) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query is required")
	}
	if err := ValidateQuery(r.Query); err != nil {
		return err
	}
	return nil
}

// Bytes returns the request as JSON bytes
func (r *Request) Bytes() ([]byte, error) {
	return json.Marshal(r)
}

// Clone creates a copy of the request
func (r *Request) Clone() *Request {
	clone := &Request{
		Query:         r.Query,
		OperationName: r.OperationName,
	}
	if r.Variables != nil {
		clone.Variables = make(map[string]any, len(r.Variables))
		for k, v := range r.Variables {
			clone.Variables[k] = v
		}
	}
	return clone
}

// ValidateQuery parses the query text and reports syntax errors.
// This is a schema-free check: it catches malformed documents before
// they are submitted, not type errors.
func ValidateQuery(query string) error {
	if _, err := parser.ParseQuery(&ast.Source{Input: query}); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	return nil
}

// OperationName extracts the name of the first named operation in the
// query text. Returns an empty string for anonymous operations or
// queries that do not parse.
func OperationName(query string) string {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return ""
	}
	for _, op := range doc.Operations {
		if op.Name != "" {
			return op.Name
		}
	}
	return ""
}
