package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("openai:key1|ollama| mock ")
	require.Len(t, refs, 3)
	require.Equal(t, "openai", refs[0].Name)
	require.Equal(t, "key1", refs[0].KeyAlias)
	require.Equal(t, "ollama", refs[1].Name)
	require.Empty(t, refs[1].KeyAlias)
	require.Equal(t, "mock", refs[2].Name)
}

func TestParseProviderListEmptyFallsBackToMock(t *testing.T) {
	refs := ParseProviderList("")
	require.Len(t, refs, 1)
	require.Equal(t, "mock", refs[0].Name)

	refs = ParseProviderList(" | | ")
	require.Len(t, refs, 1)
	require.Equal(t, "mock", refs[0].Name)
}
