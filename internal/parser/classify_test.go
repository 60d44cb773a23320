package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/themobileprof/moaflow/pkg/models"
)

func openStatement(fields map[string]any) map[string]any {
	return map[string]any{models.KeyOpen: fields}
}

func TestIsOpen(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			models.KeyModule:   "payments",
			models.KeyMethod:   "/pay",
			models.KeyCallback: []any{},
		}
	}

	t.Run("empty", func(t *testing.T) {
		assert.False(t, IsOpen(map[string]any{}))
	})

	t.Run("without parameters", func(t *testing.T) {
		assert.True(t, IsOpen(openStatement(base())))
	})

	t.Run("with parameters", func(t *testing.T) {
		fields := base()
		fields[models.KeyParameters] = map[string]any{"token": "##token"}
		assert.True(t, IsOpen(openStatement(fields)))
	})

	t.Run("explicitly empty parameters", func(t *testing.T) {
		fields := base()
		fields[models.KeyParameters] = map[string]any{}
		assert.False(t, IsOpen(openStatement(fields)))
	})

	t.Run("second top level key", func(t *testing.T) {
		s := openStatement(base())
		s["%%another-key"] = map[string]any{}
		assert.False(t, IsOpen(s))
	})

	t.Run("callback missing", func(t *testing.T) {
		fields := base()
		delete(fields, models.KeyCallback)
		fields[models.KeyParameters] = map[string]any{"a": "b"}
		assert.False(t, IsOpen(openStatement(fields)))
	})

	t.Run("too many entries", func(t *testing.T) {
		fields := base()
		fields[models.KeyParameters] = map[string]any{"a": "b"}
		fields["%%extra"] = 1
		assert.False(t, IsOpen(openStatement(fields)))
	})

	t.Run("open is not a mapping", func(t *testing.T) {
		assert.False(t, IsOpen(map[string]any{models.KeyOpen: []any{}}))
	})
}

func TestIsError(t *testing.T) {
	assert.False(t, IsError(map[string]any{}))
	assert.False(t, IsError(map[string]any{
		models.KeyError: map[string]any{},
		"other":         1,
	}))
	assert.False(t, IsError(map[string]any{models.KeyError: []any{}}))
	assert.True(t, IsError(map[string]any{
		models.KeyError: map[string]any{"400": []any{}},
	}))
}

func TestIsResponseMatchBareKeyAlwaysMatches(t *testing.T) {
	s := map[string]any{models.KeyResponse: []any{}}

	assert.True(t, IsResponseMatch(s, map[string]any{}))
	assert.True(t, IsResponseMatch(s, nil))
	assert.True(t, IsResponseMatch(s, map[string]any{"anything": 1}))
}

func TestIsResponseMatchRequiresEveryField(t *testing.T) {
	s := map[string]any{"%%response.paymentToken,%%response.amount": []any{}}

	assert.False(t, IsResponseMatch(s, map[string]any{"paymentToken": "1234"}))
	assert.True(t, IsResponseMatch(s, map[string]any{"paymentToken": "1234", "amount": 100}))
}

func TestIsResponseMatchIgnoresInvalidTokens(t *testing.T) {
	response := map[string]any{"paymentToken": "1234", "amount": 200}

	mixed := map[string]any{"%%response.paymentToken,%%not-a-response.amount": []any{}}
	assert.True(t, IsResponseMatch(mixed, response))

	allInvalid := map[string]any{"%%not-a-response.paymentToken,plain": []any{}}
	assert.False(t, IsResponseMatch(allInvalid, response))

	tooDeep := map[string]any{"%%response.payment.token": []any{}}
	assert.False(t, IsResponseMatch(tooDeep, response))
}

func TestIsParamAssignment(t *testing.T) {
	assert.False(t, IsParamAssignment(map[string]any{}))
	assert.False(t, IsParamAssignment(map[string]any{
		"paymentToken": "%%response.paymentToken",
		"amount":       "%%response.amount",
	}))
	assert.False(t, IsParamAssignment(map[string]any{
		"##paymentToken": "%%response.paymentToken",
		"amount":         "%%response.amount",
	}))
	assert.True(t, IsParamAssignment(map[string]any{
		"##paymentToken": "%%response.paymentToken",
		"##amount":       "%%response.amount",
	}))
}

func TestIsRecursiveCall(t *testing.T) {
	s := map[string]any{"@@pay": map[string]any{"##paymentToken": "%%response.paymentToken"}}

	assert.False(t, IsRecursiveCall(s, "@@not-pay"))
	assert.False(t, IsRecursiveCall(s, ""))
	assert.True(t, IsRecursiveCall(s, "@@pay"))
}

func TestRole(t *testing.T) {
	open := openStatement(map[string]any{
		models.KeyModule:   "payments",
		models.KeyMethod:   "/pay",
		models.KeyCallback: []any{},
	})

	tests := []struct {
		name string
		in   map[string]any
		want models.StatementKind
	}{
		{"open", open, models.StatementOpen},
		{"error", map[string]any{models.KeyError: map[string]any{}}, models.StatementError},
		{"recursive", map[string]any{"@@pay": map[string]any{}}, models.StatementRecursiveCall},
		{"assignment", map[string]any{"##a": 1}, models.StatementParamAssignment},
		{"bare response", map[string]any{models.KeyResponse: []any{}}, models.StatementResponseMatch},
		{"field response", map[string]any{"%%response.a": []any{}}, models.StatementResponseMatch},
		{"other use case", map[string]any{"@@other": map[string]any{}}, models.StatementInert},
		{"unknown", map[string]any{"not-a-response.a": []any{}}, models.StatementInert},
		{"empty", map[string]any{}, models.StatementInert},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Role(tt.in, "@@pay"))
		})
	}
}
