package identity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	conflict := fmt.Errorf("wrap: %w", ConflictError{Op: "identity.CreateUser", Field: "email"})
	assert.True(t, IsConflict(conflict))
	assert.True(t, errors.Is(conflict, ErrConflict))
	assert.Equal(t, "identity.CreateUser: conflict: email", ConflictError{Op: "identity.CreateUser", Field: "email"}.Error())

	nf := NotFoundError{Op: "identity.FindByID", Resource: "user"}
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsConflict(nf))

	inv := invalid("identity.CreateUser", "name is required")
	assert.True(t, IsInvalidInput(inv))
	assert.Equal(t, "identity.CreateUser: invalid_input: name is required", inv.Error())
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  A@B.com ":     "a@b.com",
		"already@lower":  "already@lower",
		"MiXeD@CaSe.Org": "mixed@case.org",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeEmail(in), in)
	}
}
