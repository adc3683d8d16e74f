package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryAllowed(t *testing.T) {
	for _, c := range AllowedCategories {
		assert.True(t, CategoryAllowed(c), c)
	}

	assert.False(t, CategoryAllowed("electronics"))
	assert.False(t, CategoryAllowed("Garden"))
	assert.False(t, CategoryAllowed(""))
}
