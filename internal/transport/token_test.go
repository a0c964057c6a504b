package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenStore_EmptyByDefault(t *testing.T) {
	tokens := NewTokenStore()
	token, ok := tokens.Get()
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestTokenStore_SetGetClear(t *testing.T) {
	tokens := NewTokenStore()

	tokens.Set("access-1")
	token, ok := tokens.Get()
	assert.True(t, ok)
	assert.Equal(t, "access-1", token)

	tokens.Set("access-2")
	token, _ = tokens.Get()
	assert.Equal(t, "access-2", token, "set replaces the held credential")

	tokens.Clear()
	_, ok = tokens.Get()
	assert.False(t, ok)
}

func TestTokenStore_ConcurrentAccess(t *testing.T) {
	tokens := NewTokenStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tokens.Set("token")
		}()
		go func() {
			defer wg.Done()
			tokens.Get()
		}()
	}
	wg.Wait()

	token, ok := tokens.Get()
	assert.True(t, ok)
	assert.Equal(t, "token", token)
}
