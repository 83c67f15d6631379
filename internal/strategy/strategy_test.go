package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/remedyd/internal/check"
)

func TestResolveExactNameBeatsKeyword(t *testing.T) {
	named := Strategy{Kind: KindClearState, Severity: SeveritySafe}
	r := NewResolver(
		map[string]Strategy{"special": named},
		[]KeywordRule{{Keyword: "storage", Strategy: StoreRepairStrategy()}},
	)

	// The verdict keyword would match store repair, but the name table wins.
	s, ok := r.Resolve("special", check.Fail("broken", "", "storage"))
	require.True(t, ok)
	assert.Equal(t, KindClearState, s.Kind)
}

func TestResolveKeywordFallbackOrder(t *testing.T) {
	r := NewResolver(nil, []KeywordRule{
		{Keyword: "storage/configuration", Strategy: SeedConfigStrategy()},
		{Keyword: "storage", Strategy: StoreRepairStrategy()},
	})

	// "storage/configuration" contains both keywords; the first rule wins.
	s, ok := r.Resolve("any", check.Fail("missing key", "", "storage/configuration"))
	require.True(t, ok)
	assert.Equal(t, KindSeedConfig, s.Kind)

	s, ok = r.Resolve("any", check.Fail("io error", "", "storage"))
	require.True(t, ok)
	assert.Equal(t, KindStoreRepair, s.Kind)
}

func TestResolveCaseInsensitive(t *testing.T) {
	r := NewResolver(nil, []KeywordRule{
		{Keyword: "Storage", Strategy: StoreRepairStrategy()},
	})

	_, ok := r.Resolve("any", check.Fail("io error", "", "STORAGE"))
	assert.True(t, ok)
}

func TestResolveMatchesSuggestedRemedy(t *testing.T) {
	r := NewResolver(nil, []KeywordRule{
		{Keyword: "reseed", Strategy: SeedConfigStrategy()},
	})

	v := check.Fail("missing key", "", "unknown")
	v.SuggestedRemedy = "reseed the defaults"

	_, ok := r.Resolve("any", v)
	assert.True(t, ok)
}

func TestResolveNoMatch(t *testing.T) {
	r := DefaultResolver()

	_, ok := r.Resolve("external-api", check.Fail("unreachable", "", "network"))
	assert.False(t, ok, "no match means manual intervention, not an error")
}

func TestResolveDeterministic(t *testing.T) {
	r := DefaultResolver()
	v := check.Fail("missing key", "", "storage/configuration")

	first, ok := r.Resolve("config-suite", v)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := r.Resolve("config-suite", v)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestDefaultResolverMappings(t *testing.T) {
	r := DefaultResolver()

	tests := []struct {
		component string
		want      Kind
	}{
		{"storage/configuration", KindSeedConfig},
		{"configuration", KindSeedConfig},
		{"storage", KindStoreRepair},
		{"security", KindPermissions},
	}

	for _, tt := range tests {
		s, ok := r.Resolve("any", check.Fail("broken", "", tt.component))
		require.True(t, ok, tt.component)
		assert.Equal(t, tt.want, s.Kind, tt.component)
	}
}

func TestAllActionsCoversStrategyActionLists(t *testing.T) {
	known := make(map[ActionID]bool)
	for _, id := range AllActions() {
		known[id] = true
	}

	for _, s := range []Strategy{SeedConfigStrategy(), StoreRepairStrategy(), PermissionsStrategy()} {
		for _, id := range append(s.Actions, s.RollbackActions...) {
			assert.True(t, known[id], "strategy references unknown action %s", id)
		}
	}
}
