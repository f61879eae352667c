package principal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerColumns(t *testing.T) {
	ownerType, ownerID := Guest("abc-123").OwnerColumns()
	assert.Equal(t, "guest", ownerType)
	assert.Equal(t, "abc-123", ownerID)

	ownerType, ownerID = User(42).OwnerColumns()
	assert.Equal(t, "user", ownerType)
	assert.Equal(t, "42", ownerID)
}

func TestIsZero(t *testing.T) {
	assert.True(t, Principal{}.IsZero())
	assert.False(t, Guest("abc").IsZero())
	assert.False(t, User(1).IsZero())
}

func TestIsUser(t *testing.T) {
	assert.True(t, User(1).IsUser())
	assert.False(t, Guest("abc").IsUser())
}
