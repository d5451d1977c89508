// Package tools implements MCP tool handlers for devflow.
//
// Each tool follows the same pattern: a struct holding its dependencies,
// a Definition method returning the mcp.Tool schema, and a Handle method
// processing the call. Successful calls return a JSON body; business-rule
// failures return a JSON error body flagged isError.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HendryAvila/devflow/internal/project"
	"github.com/mark3labs/mcp-go/mcp"
)

// errorBody is the JSON shape of every business-rule failure.
type errorBody struct {
	Success bool           `json:"success"`
	Error   *project.Error `json:"error"`
}

// jsonResult marshals v as the text content of a successful result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult turns err into a tool-level error result carrying its code.
// Cancellation is returned as a protocol error; other untyped failures are
// reported as STORE_IO.
func errorResult(err error) (*mcp.CallToolResult, error) {
	var pe *project.Error
	if !errors.As(err, &pe) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		pe = &project.Error{Code: project.CodeStoreIO, Message: err.Error()}
	}
	body := errorBody{Success: false, Error: pe}
	if pe.Err != nil {
		// Err itself is not serialized, so fold the cause into the message.
		c := *pe
		c.Message = fmt.Sprintf("%s: %v", pe.Message, pe.Err)
		body.Error = &c
	}
	data, mErr := json.MarshalIndent(body, "", "  ")
	if mErr != nil {
		return nil, fmt.Errorf("marshaling error result: %w", mErr)
	}
	return mcp.NewToolResultError(string(data)), nil
}

// validationResult reports a single bad argument.
func validationResult(field, msg string) (*mcp.CallToolResult, error) {
	return errorResult(project.NewValidationError([]project.FieldError{{Field: field, Message: msg}}))
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
