// Package gqlrequest decodes and parses incoming GraphQL requests into the
// pieces query building needs: the selected operation, its fragment
// definitions, and decoded variables.
package gqlrequest

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
	"github.com/pkg/errors"

	"dataapi/internal/dberror"
)

// Request is a normalized GraphQL request payload.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]interface{}
}

// DecodeRequest parses a JSON request body in the standard GraphQL shape
// {"query": ..., "operationName": ..., "variables": ...}. A body that is
// not JSON is treated as a bare query document.
func DecodeRequest(body []byte) (Request, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Request{}, dberror.NewBadRequest("request body is empty")
	}

	if trimmed[0] != '{' {
		return Request{Query: string(trimmed)}, nil
	}

	var payload struct {
		Query         string          `json:"query"`
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return Request{}, dberror.WrapBadRequest(err, "request body is not valid JSON")
	}

	req := Request{Query: payload.Query, OperationName: payload.OperationName}
	if len(payload.Variables) > 0 && !bytes.Equal(bytes.TrimSpace(payload.Variables), []byte("null")) {
		if err := json.Unmarshal(payload.Variables, &req.Variables); err != nil {
			return Request{}, dberror.WrapBadRequest(err, "variables must be a JSON object")
		}
	}
	return req, nil
}

// Operation is one parsed and selected GraphQL operation together with the
// fragments and variables its selections may reference.
type Operation struct {
	Definition *ast.OperationDefinition
	Fragments  map[string]*ast.FragmentDefinition
	Variables  map[string]interface{}
}

// Parse parses the request document and selects the operation to run.
// When the document holds several operations the request must name one.
func Parse(req Request) (*Operation, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, dberror.NewBadRequest("request contains no query document")
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(req.Query),
			Name: "graphql",
		}),
	})
	if err != nil {
		return nil, dberror.WrapBadRequest(err, "failed to parse query document")
	}

	fragments := map[string]*ast.FragmentDefinition{}
	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			operations = append(operations, d)
		case *ast.FragmentDefinition:
			if d.Name != nil {
				fragments[d.Name.Value] = d
			}
		}
	}

	op, err := selectOperation(operations, req.OperationName)
	if err != nil {
		return nil, err
	}

	return &Operation{Definition: op, Fragments: fragments, Variables: req.Variables}, nil
}

func selectOperation(operations []*ast.OperationDefinition, name string) (*ast.OperationDefinition, error) {
	if len(operations) == 0 {
		return nil, dberror.NewBadRequest("document contains no operations")
	}

	if name == "" {
		if len(operations) > 1 {
			return nil, dberror.NewBadRequest("operationName is required when the document holds multiple operations")
		}
		return operations[0], nil
	}

	for _, op := range operations {
		if op.Name != nil && op.Name.Value == name {
			return op, nil
		}
	}
	return nil, errors.WithStack(dberror.NewBadRequestf("operation %q not found in document", name))
}

// Type reports the operation type: query, mutation, or subscription.
func (o *Operation) Type() string {
	return o.Definition.Operation
}

// RootFields returns the top level fields of the selected operation.
// Fragment spreads at the root are expanded.
func (o *Operation) RootFields() []*ast.Field {
	return rootFields(o.Definition.SelectionSet, o.Fragments, map[string]bool{})
}

func rootFields(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, visited map[string]bool) []*ast.Field {
	if set == nil {
		return nil
	}
	var fields []*ast.Field
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields = append(fields, sel)
		case *ast.InlineFragment:
			fields = append(fields, rootFields(sel.SelectionSet, fragments, visited)...)
		case *ast.FragmentSpread:
			if sel.Name == nil || visited[sel.Name.Value] {
				continue
			}
			visited[sel.Name.Value] = true
			if fragment, ok := fragments[sel.Name.Value]; ok {
				fields = append(fields, rootFields(fragment.SelectionSet, fragments, visited)...)
			}
		}
	}
	return fields
}
