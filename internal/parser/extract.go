package parser

import (
	"sort"
	"strconv"
	"strings"

	"github.com/themobileprof/moaflow/internal/urlvalue"
	"github.com/themobileprof/moaflow/pkg/models"
)

// ExtractURL builds the module URL of an open statement: %%module is the host,
// %%method the path and %%parameters the query. Parameter values that name a
// current service parameter (##token) are replaced with its value.
func ExtractURL(s map[string]any, scheme string, params models.Params) (urlvalue.URL, bool) {
	if !IsOpen(s) {
		return urlvalue.URL{}, false
	}
	open, _ := models.AsMap(s[models.KeyOpen])

	host, ok := open[models.KeyModule].(string)
	if !ok {
		return urlvalue.URL{}, false
	}
	path, ok := open[models.KeyMethod].(string)
	if !ok {
		return urlvalue.URL{}, false
	}

	u, err := urlvalue.New(scheme, host, path, queryFrom(open[models.KeyParameters], params))
	if err != nil {
		return urlvalue.URL{}, false
	}
	return u, true
}

func queryFrom(raw any, params models.Params) map[string]string {
	declared, ok := models.AsMap(raw)
	if !ok {
		return nil
	}
	query := make(map[string]string, len(declared))
	for k, v := range declared {
		if ref, ok := v.(string); ok && strings.HasPrefix(ref, models.ParamPrefix) {
			if current, found := params[ref]; found {
				v = current
			}
		}
		if str, ok := models.Stringify(v); ok {
			query[k] = str
		}
	}
	return query
}

// ExtractCallback returns the %%callback statements of an open statement
func ExtractCallback(s map[string]any) ([]any, bool) {
	if !IsOpen(s) {
		return nil, false
	}
	open, _ := models.AsMap(s[models.KeyOpen])
	return models.AsList(open[models.KeyCallback])
}

// MatchingErrorBranch returns the statements of the first entry whose comma
// separated codes contain code. Entries are scanned in ascending key order.
func MatchingErrorBranch(body map[string]any, code int) ([]any, bool) {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, part := range strings.Split(key, models.ListSeparator) {
			n, err := strconv.Atoi(part)
			if err != nil || n != code {
				continue
			}
			return models.AsList(body[key])
		}
	}
	return nil, false
}

// ErrorBody returns the code-to-statements mapping of an error statement
func ErrorBody(s map[string]any) (map[string]any, bool) {
	if !IsError(s) {
		return nil, false
	}
	return models.AsMap(s[models.KeyError])
}

// Body returns the value of a single-entry statement
func Body(s map[string]any) (any, bool) {
	key, ok := singleKey(s)
	if !ok {
		return nil, false
	}
	return s[key], true
}

// ResponseStatements keeps the single-entry statements keyed by %%response or
// by a list holding at least one valid %%response.<field> token
func ResponseStatements(stmts []any) []map[string]any {
	var out []map[string]any
	for _, raw := range stmts {
		s, ok := models.AsMap(raw)
		if ok && isResponseShaped(s) {
			out = append(out, s)
		}
	}
	return out
}

// MatchingResponseStatements keeps the response statements matching response
func MatchingResponseStatements(stmts []any, response map[string]any) []map[string]any {
	var out []map[string]any
	for _, s := range ResponseStatements(stmts) {
		if IsResponseMatch(s, response) {
			out = append(out, s)
		}
	}
	return out
}

// RecursiveAssignments returns the ## assignments carried by a recursive call
// to useCase, or false when there are none
func RecursiveAssignments(s map[string]any, useCase string) (map[string]any, bool) {
	if !IsRecursiveCall(s, useCase) {
		return nil, false
	}
	body, ok := models.AsMap(s[useCase])
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(body))
	for k, v := range body {
		if strings.HasPrefix(k, models.ParamPrefix) {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
