package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalFactory(t *testing.T) {
	prev := global.Load()
	t.Cleanup(func() { global.Store(prev) })

	global.Store(nil)
	assert.Panics(t, func() { GetGlobalRepositories() })

	fake := &Repositories{}
	InitializeFactoryWith(fake)
	assert.Same(t, fake, GetGlobalRepositories())

	// A factory is already installed, so the db handle is ignored.
	InitializeFactory(nil)
	assert.Same(t, fake, GetGlobalRepositories())
}
