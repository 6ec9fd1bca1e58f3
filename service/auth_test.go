package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticTokenAuthenticator_ValidToken(t *testing.T) {
	a := NewStaticTokenAuthenticator([]string{"T", "U"})
	assert.True(t, a.Validate("T"))
	assert.True(t, a.Validate("U"))
}

func TestStaticTokenAuthenticator_InvalidToken(t *testing.T) {
	a := NewStaticTokenAuthenticator([]string{"T"})
	assert.False(t, a.Validate("not-T"))
	assert.False(t, a.Validate(""))
}

func TestStaticTokenAuthenticator_EmptyConfiguredSet(t *testing.T) {
	a := NewStaticTokenAuthenticator(nil)
	assert.False(t, a.Validate("anything"))
}
