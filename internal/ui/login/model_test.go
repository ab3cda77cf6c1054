package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, validateEmail(" alice@example.com "))
	assert.Error(t, validateEmail(""))
	assert.Error(t, validateEmail("not-an-address"))
}

func TestStartSwitchesMode(t *testing.T) {
	m := New(80, 24)

	m.Start()
	assert.Contains(t, m.View(), "Sign in")

	m.StartRegister()
	assert.Contains(t, m.View(), "Create account")
}
