package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter struct{ n int }

func TestRegisterToken_BuildsOnce(t *testing.T) {
	c := NewContainer()
	token := NewToken[*counter]("test:counter")

	builds := 0
	RegisterToken(c, token, func(ServiceRegistry) *counter {
		builds++
		return &counter{n: builds}
	})

	first := GetToken(c, token)
	second := GetToken(c, token)

	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)
}

func TestFactory_ResolvesDependencies(t *testing.T) {
	c := NewContainer()
	c.Register("config", 42)

	token := NewToken[int]("test:derived")
	RegisterToken(c, token, func(sr ServiceRegistry) int {
		return sr.Get("config").(int) + 1
	})

	assert.Equal(t, 43, GetToken(c, token))
}

func TestGet_UnknownPanics(t *testing.T) {
	c := NewContainer()
	assert.Panics(t, func() { c.Get("missing") })
}

func TestGetToken_WrongTypePanics(t *testing.T) {
	c := NewContainer()
	c.Register("test:value", "string")

	assert.Panics(t, func() {
		GetToken(c, NewToken[int]("test:value"))
	})
}
