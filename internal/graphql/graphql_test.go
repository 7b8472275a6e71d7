package graphql

import (
	"strings"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery(`query Posts { posts { id title } }`); err != nil {
		t.Errorf("valid query rejected: %v", err)
	}

	if err := ValidateQuery(`query Posts { posts { id`); err == nil {
		t.Error("malformed query accepted")
	}
}

func TestOperationName(t *testing.T) {
	if got := OperationName(`query AllPosts { posts { id } }`); got != "AllPosts" {
		t.Errorf("OperationName = %q, want AllPosts", got)
	}

	if got := OperationName(`{ posts { id } }`); got != "" {
		t.Errorf("OperationName for anonymous query = %q, want empty", got)
	}

	if got := OperationName(`not graphql at all {{{`); got != "" {
		t.Errorf("OperationName for garbage = %q, want empty", got)
	}
}

func TestRequest_Validate(t *testing.T) {
	req := NewRequest("", nil)
	if err := req.Validate(); err == nil {
		t.Error("empty query accepted")
	}

	req = NewRequest(`query { posts { id } }`, map[string]any{"first": 10})
	if err := req.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse([]byte(`{"data":{"posts":[]}}`))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.HasErrors() {
		t.Error("HasErrors = true for clean response")
	}
	if resp.DataIsNull() {
		t.Error("DataIsNull = true for response with data")
	}

	resp, err = ParseResponse([]byte(`{"data":null,"errors":[{"message":"Cannot query field \"foo\""}]}`))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !resp.HasErrors() {
		t.Fatal("HasErrors = false for response with errors")
	}
	if !resp.DataIsNull() {
		t.Error("DataIsNull = false for null data")
	}
}

func TestResponseError_Message(t *testing.T) {
	resp := &Response{Errors: []*Error{
		{Message: "first problem"},
		{Message: "second problem"},
	}}

	err := NewResponseError(resp)
	if !strings.Contains(err.Error(), "first problem") || !strings.Contains(err.Error(), "second problem") {
		t.Errorf("error message %q missing envelope messages", err.Error())
	}
}
