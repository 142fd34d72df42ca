package mcp

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/kino/internal/errors"
)

// decodeArgs maps tool arguments onto a request struct. Arguments the tool does
// not declare are rejected so a misspelt "scriptId" fails instead of being
// silently dropped.
func decodeArgs[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, errors.NewInvalidRequest("arguments are not a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, argumentError(req.Params.Name, err)
	}
	return out, nil
}

// argumentError names the offending argument where encoding/json tells us which
// one it was.
func argumentError(tool string, err error) error {
	prefix := ""
	if tool != "" {
		prefix = tool + ": "
	}
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) && typeErr.Field != "" {
		return errors.NewInvalidRequest(fmt.Sprintf("%sargument %q must be %s, got %s",
			prefix, typeErr.Field, jsonKind(typeErr.Type.Kind().String()), typeErr.Value))
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return errors.NewInvalidRequest(fmt.Sprintf("%sunknown argument %s", prefix, field))
	}
	return errors.NewInvalidRequest(prefix + err.Error())
}

func jsonKind(goKind string) string {
	switch goKind {
	case "int", "int64", "float64":
		return "a number"
	case "bool":
		return "a boolean"
	case "slice":
		return "an array"
	default:
		return "a " + goKind
	}
}
