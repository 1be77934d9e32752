package taxonomy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCategories(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestNewAppendsFallback(t *testing.T) {
	tax, err := New([]Category{{ID: uuid.New(), Name: "Groceries", IsEssential: true}})
	require.NoError(t, err)

	fallback := tax.Uncategorized()
	assert.Equal(t, UncategorizedName, fallback.Name)
	assert.False(t, fallback.IsEssential)
	assert.Len(t, tax.Categories(), 2)
}

func TestLookups(t *testing.T) {
	tax := Default()

	byName, ok := tax.ByName("  dining ")
	require.True(t, ok)
	assert.Equal(t, "Dining", byName.Name)

	byID, ok := tax.ByID(byName.ID)
	require.True(t, ok)
	assert.Equal(t, byName, byID)

	_, ok = tax.ByName("yachts")
	assert.False(t, ok)
}

func TestDefaultIsDeterministic(t *testing.T) {
	a, b := Default(), Default()
	assert.Equal(t, a.Categories(), b.Categories())
}

func TestDefaultEssentials(t *testing.T) {
	tax := Default()
	essential := map[string]bool{}
	for _, c := range tax.Categories() {
		essential[c.Name] = c.IsEssential
	}

	assert.True(t, essential["Housing"])
	assert.True(t, essential["Groceries"])
	assert.False(t, essential["Subscriptions"])
	assert.False(t, essential["Entertainment"])
	assert.False(t, essential[UncategorizedName])
}
