package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyIsOrderInsensitive(t *testing.T) {
	a := Key(CategoryExchangeRate, map[string]string{"from": "USD", "to": "EUR", "amount": "150.00"})
	b := Key(CategoryExchangeRate, map[string]string{"amount": "150.00", "to": "EUR", "from": "USD"})
	assert.Equal(t, a, b)
}

func TestKeyDistinguishesValues(t *testing.T) {
	a := Key(CategoryExchangeRate, map[string]string{"from": "USD", "to": "EUR"})
	b := Key(CategoryExchangeRate, map[string]string{"from": "USD", "to": "GBP"})
	assert.NotEqual(t, a, b)
}

func TestKeyCarriesCategoryPrefix(t *testing.T) {
	key := Key(CategoryInvestigation, map[string]string{"amount": "9500.00"})
	assert.True(t, strings.HasPrefix(key, "investigation:"))
	assert.Equal(t, CategoryInvestigation, CategoryOf(key))

	same := Key(CategoryLLM, map[string]string{"amount": "9500.00"})
	assert.NotEqual(t, key, same, "identical parts in different categories must not collide")
}

func TestCategoryOfMalformedKey(t *testing.T) {
	assert.Equal(t, Category(""), CategoryOf("no-separator"))
	assert.Equal(t, Category(""), CategoryOf(":leading"))
}

func TestCategoriesCoverDefaultTTLs(t *testing.T) {
	for _, c := range Categories() {
		assert.Positive(t, DefaultTTLs[c], string(c))
	}
	assert.Len(t, Categories(), len(DefaultTTLs))
}

func TestStatsHitRatio(t *testing.T) {
	assert.Zero(t, Stats{}.HitRatio())

	s := Stats{
		Hits:   map[string]int64{"llm_completion": 3},
		Misses: map[string]int64{"llm_completion": 1},
	}
	assert.InDelta(t, 0.75, s.HitRatio(), 1e-9)
}
