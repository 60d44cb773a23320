package parser

import (
	"github.com/themobileprof/moaflow/pkg/models"
)

// ResolveParameters returns the service parameters after applying assignments
// against response. It is a single substitution pass:
//   - numeric literals are copied verbatim
//   - "%%response.<field>" takes response[<field>], or removes the key when
//     the response lacks that field
//   - any other value leaves the current entry alone
//
// When assignments, current or response is empty, current is returned as is.
func ResolveParameters(assignments map[string]any, current models.Params, response map[string]any) models.Params {
	if len(assignments) == 0 || len(current) == 0 || len(response) == 0 {
		return current
	}

	next := current.Clone()
	for key, value := range assignments {
		if models.IsNumber(value) {
			next[key] = value
			continue
		}
		token, ok := value.(string)
		if !ok {
			continue
		}
		field, ok := ResponseField(token)
		if !ok {
			continue
		}
		if substituted, found := response[field]; found {
			next[key] = substituted
		} else {
			delete(next, key)
		}
	}
	return next
}
