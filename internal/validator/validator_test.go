package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type signupReq struct {
	Tenant   string `json:"tenant" validate:"required,slug"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&signupReq{Tenant: "toko-a", Email: "a@example.com", Password: "password1"}))

	err := v.Validate(&signupReq{Tenant: "toko-a", Password: "password1"})
	assert.Equal(t, "email is required", Message(err))

	err = v.Validate(&signupReq{Tenant: "Toko A", Email: "a@example.com", Password: "password1"})
	assert.Equal(t, "invalid tenant", Message(err))

	err = v.Validate(&signupReq{Tenant: "toko", Email: "a@example.com", Password: "short"})
	assert.Equal(t, "invalid password", Message(err))
}

func TestIsSlug(t *testing.T) {
	assert.True(t, IsSlug("toko-budi-2"))
	assert.False(t, IsSlug("-toko"))
	assert.False(t, IsSlug("toko--a"))
	assert.False(t, IsSlug(""))
}
