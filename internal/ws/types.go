package ws

import (
	"encoding/json"

	"gqlherd/internal/graphql"
)

// submitFrame is one inbound query submission. The id is assigned by
// the client and echoed on the matching result frame; outcomes are
// pushed as they settle, in no particular order.
type submitFrame struct {
	ID        string         `json:"id"`
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
	Fresh     bool           `json:"fresh,omitempty"`
}

// resultFrame is one outbound settled outcome
type resultFrame struct {
	ID         string           `json:"id"`
	Data       json.RawMessage  `json:"data,omitempty"`
	Errors     []*graphql.Error `json:"errors,omitempty"`
	Extensions json.RawMessage  `json:"extensions,omitempty"`
}
