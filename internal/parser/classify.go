// Package parser recognizes the statement shapes of a use case definition and
// computes service parameter updates from module responses.
//
// A statement's role is never tagged; it is inferred from its keys:
//
//	{"%%open": {...}}                      open a module
//	{"%%error": {"400,401": [...]}}        run a branch for a matching error code
//	{"%%response.a,%%response.b": ...}     run when the response carries a and b
//	{"##token": "%%response.token"}        assign service parameters
//	{"@@pay": {"##token": ...}}            re-run the use case with new parameters
package parser

import (
	"strings"

	"github.com/themobileprof/moaflow/pkg/models"
)

// Role infers the single role of a statement from its key shape.
// The shapes are mutually exclusive; anything unrecognized is inert.
func Role(s map[string]any, useCase string) models.StatementKind {
	switch {
	case IsOpen(s):
		return models.StatementOpen
	case IsError(s):
		return models.StatementError
	case IsRecursiveCall(s, useCase):
		return models.StatementRecursiveCall
	case IsParamAssignment(s):
		return models.StatementParamAssignment
	case isResponseShaped(s):
		return models.StatementResponseMatch
	default:
		return models.StatementInert
	}
}

// IsOpen reports whether s is {"%%open": {...}} carrying %%module, %%method
// and %%callback, with at most one more entry. An explicitly empty
// %%parameters mapping invalidates the statement.
func IsOpen(s map[string]any) bool {
	if len(s) != 1 {
		return false
	}
	open, ok := models.AsMap(s[models.KeyOpen])
	if !ok || len(open) < 3 || len(open) > 4 {
		return false
	}
	for _, key := range []string{models.KeyModule, models.KeyMethod, models.KeyCallback} {
		if _, ok := open[key]; !ok {
			return false
		}
	}
	if params, ok := models.AsMap(open[models.KeyParameters]); ok && len(params) == 0 {
		return false
	}
	return true
}

// IsError reports whether s is {"%%error": {...}}
func IsError(s map[string]any) bool {
	if len(s) != 1 {
		return false
	}
	_, ok := models.AsMap(s[models.KeyError])
	return ok
}

// IsResponseMatch reports whether s is keyed by %%response, or by a comma list
// of %%response.<field> tokens whose fields are all present in response.
// Tokens of any other shape in the list are ignored; a list with no valid
// token does not match.
func IsResponseMatch(s map[string]any, response map[string]any) bool {
	key, ok := singleKey(s)
	if !ok {
		return false
	}
	if key == models.KeyResponse {
		return true
	}

	fields := responseFields(key)
	if len(fields) == 0 {
		return false
	}
	for _, field := range fields {
		if _, ok := response[field]; !ok {
			return false
		}
	}
	return true
}

// IsParamAssignment reports whether s is non-empty and every key is ##-prefixed
func IsParamAssignment(s map[string]any) bool {
	if len(s) == 0 {
		return false
	}
	for k := range s {
		if !strings.HasPrefix(k, models.ParamPrefix) {
			return false
		}
	}
	return true
}

// IsRecursiveCall reports whether s has a single key equal to the running
// use case's @@ name
func IsRecursiveCall(s map[string]any, useCase string) bool {
	if useCase == "" {
		return false
	}
	key, ok := singleKey(s)
	return ok && key == useCase
}

func isResponseShaped(s map[string]any) bool {
	key, ok := singleKey(s)
	if !ok {
		return false
	}
	return key == models.KeyResponse || len(responseFields(key)) > 0
}

// responseFields extracts <field> from every valid %%response.<field> token
// of a comma separated key
func responseFields(key string) []string {
	var fields []string
	for _, token := range strings.Split(key, models.ListSeparator) {
		if field, ok := ResponseField(token); ok {
			fields = append(fields, field)
		}
	}
	return fields
}

// ResponseField returns <field> when token has the exact shape %%response.<field>
func ResponseField(token string) (string, bool) {
	parts := strings.Split(token, models.PathSeparator)
	if len(parts) != 2 || parts[0] != models.KeyResponse || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func singleKey(s map[string]any) (string, bool) {
	if len(s) != 1 {
		return "", false
	}
	for k := range s {
		return k, true
	}
	return "", false
}
