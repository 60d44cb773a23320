package models

import (
	"errors"
	"fmt"
	"strings"
)

// Wire keywords of the statement grammar
const (
	KeyServiceParameters = "%%serviceParameters"
	KeyOpen              = "%%open"
	KeyModule            = "%%module"
	KeyMethod            = "%%method"
	KeyParameters        = "%%parameters"
	KeyCallback          = "%%callback"
	KeyError             = "%%error"
	KeyResponse          = "%%response"

	ParamPrefix   = "##"
	UseCasePrefix = "@@"

	ListSeparator = ","
	PathSeparator = "."
)

// ErrInvalidDefinition is returned when a use case definition does not have
// exactly one %%serviceParameters entry and one @@ statement list
var ErrInvalidDefinition = errors.New("invalid use case definition")

// Params holds the ##-prefixed service parameters of one run.
// Values are replaced wholesale, never edited in place.
type Params map[string]any

// Clone returns a shallow copy of p
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Definition is a decoded use case: one %%serviceParameters mapping and one
// @@<name> statement list
type Definition map[string]any

// Name returns the @@-prefixed use case key
func (d Definition) Name() (string, bool) {
	for k := range d {
		if strings.HasPrefix(k, UseCasePrefix) {
			return k, true
		}
	}
	return "", false
}

// Validate checks the two-entry shape of the definition
func (d Definition) Validate() error {
	if len(d) != 2 {
		return fmt.Errorf("%w: expected 2 entries, got %d", ErrInvalidDefinition, len(d))
	}
	if _, ok := d[KeyServiceParameters]; !ok {
		return fmt.Errorf("%w: missing %s", ErrInvalidDefinition, KeyServiceParameters)
	}
	name, ok := d.Name()
	if !ok {
		return fmt.Errorf("%w: missing %s<name> statement list", ErrInvalidDefinition, UseCasePrefix)
	}
	if _, ok := d.Statements(); !ok {
		return fmt.Errorf("%w: %s is not a statement list", ErrInvalidDefinition, name)
	}
	return nil
}

// Statements returns the top level statement list under the @@ key
func (d Definition) Statements() ([]any, bool) {
	name, ok := d.Name()
	if !ok {
		return nil, false
	}
	return AsList(d[name])
}

// InitialParams returns the ##-prefixed entries of %%serviceParameters
func (d Definition) InitialParams() Params {
	out := Params{}
	raw, ok := AsMap(d[KeyServiceParameters])
	if !ok {
		return out
	}
	for k, v := range raw {
		if strings.HasPrefix(k, ParamPrefix) {
			out[k] = v
		}
	}
	return out
}

// Response is what an opened module hands back: the response mapping and an
// error code. Nil Data means no response; ErrorCode 0 means no error.
type Response struct {
	Data      map[string]any
	ErrorCode int
}

// HasError reports whether the module reported an error code
func (r Response) HasError() bool {
	return r.ErrorCode != 0
}

// StatementKind is the role of a statement inferred from its key shape
type StatementKind int

const (
	StatementInert StatementKind = iota
	StatementOpen
	StatementError
	StatementResponseMatch
	StatementParamAssignment
	StatementRecursiveCall
)

func (k StatementKind) String() string {
	switch k {
	case StatementOpen:
		return "open"
	case StatementError:
		return "error"
	case StatementResponseMatch:
		return "response"
	case StatementParamAssignment:
		return "assignment"
	case StatementRecursiveCall:
		return "recursive"
	default:
		return "inert"
	}
}
