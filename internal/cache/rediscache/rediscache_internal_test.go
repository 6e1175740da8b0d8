package rediscache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavesplatform/assetindex/internal/cache"
	"github.com/wavesplatform/assetindex/internal/model"
)

func TestNamespaceOf(t *testing.T) {
	assert.Equal(t, "asset", namespaceOf("asset:abc123"))
	assert.Equal(t, "search", namespaceOf("search:deadbeef"))
	assert.Equal(t, "unknown", namespaceOf("no-colon-here"))
}

func TestNamespacesForEachMode(t *testing.T) {
	assert.ElementsMatch(t, []string{cache.NamespaceAsset, cache.NamespaceSearch}, namespacesFor(model.InvalidateBlockchainData))
	assert.ElementsMatch(t,
		[]string{cache.NamespaceAsset, cache.NamespaceSearch, cache.NamespaceLabel, cache.NamespaceTicker},
		namespacesFor(model.InvalidateUserDefinedData))
	assert.ElementsMatch(t, []string{cache.NamespaceLabel, cache.NamespaceSearch}, namespacesFor(model.InvalidateLabels))
	assert.Nil(t, namespacesFor(model.InvalidateAll), "all_data is handled by FlushAll, not a namespace scan")
}
