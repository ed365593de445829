package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequired(t *testing.T) {
	v := NewValidator()

	type req struct {
		Name string `json:"name" validate:"required"`
	}

	assert.Error(t, v.Validate(req{}))
	require.NoError(t, v.Validate(req{Name: "x"}))
}

func TestValidateEmail(t *testing.T) {
	v := NewValidator()

	type req struct {
		Email string `json:"email" validate:"required,email"`
	}

	assert.Error(t, v.Validate(req{Email: "not-an-email"}))
	assert.Error(t, v.Validate(req{Email: "@example.com"}))
	require.NoError(t, v.Validate(req{Email: "ops@example.com"}))
}

func TestValidateMinMax(t *testing.T) {
	v := NewValidator()

	type req struct {
		Name     string `json:"name" validate:"min=3,max=5"`
		Priority int    `json:"priority" validate:"min=0,max=10"`
	}

	assert.Error(t, v.Validate(req{Name: "ab", Priority: 1}))
	assert.Error(t, v.Validate(req{Name: "toolong", Priority: 1}))
	assert.Error(t, v.Validate(req{Name: "abc", Priority: 11}))
	require.NoError(t, v.Validate(req{Name: "abc", Priority: 10}))
}

func TestValidateClockField(t *testing.T) {
	v := NewValidator()

	type req struct {
		StartTime string `json:"start_time" validate:"required,hhmm"`
	}

	assert.Error(t, v.Validate(req{StartTime: "9am"}))
	assert.Error(t, v.Validate(req{StartTime: "25:00"}))
	assert.Error(t, v.Validate(req{StartTime: "12:60"}))
	require.NoError(t, v.Validate(req{StartTime: "09:30"}))
	require.NoError(t, v.Validate(req{StartTime: "23:59"}))
}

func TestValidateNonStruct(t *testing.T) {
	v := NewValidator()
	assert.Error(t, v.Validate("not a struct"))
}

func TestValidatePointer(t *testing.T) {
	v := NewValidator()

	type req struct {
		Name string `json:"name" validate:"required"`
	}

	require.NoError(t, v.Validate(&req{Name: "x"}))
}
