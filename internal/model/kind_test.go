package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavesplatform/assetindex/internal/model"
)

func TestWidestMode(t *testing.T) {
	cases := []struct {
		a, b model.InvalidationMode
		want model.InvalidationMode
	}{
		{"", model.InvalidateLabels, model.InvalidateLabels},
		{model.InvalidateLabels, "", model.InvalidateLabels},
		{model.InvalidateBlockchainData, model.InvalidateBlockchainData, model.InvalidateBlockchainData},
		{model.InvalidateBlockchainData, model.InvalidateLabels, model.InvalidateBlockchainData},
		{model.InvalidateLabels, model.InvalidateUserDefinedData, model.InvalidateUserDefinedData},
		{model.InvalidateBlockchainData, model.InvalidateUserDefinedData, model.InvalidateAll},
		{model.InvalidateAll, model.InvalidateLabels, model.InvalidateAll},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, model.WidestMode(c.a, c.b), "WidestMode(%q, %q)", c.a, c.b)
	}
}

func TestModeForKind(t *testing.T) {
	assert.Equal(t, model.InvalidateBlockchainData, model.ModeForKind(model.KindAsset))
	assert.Equal(t, model.InvalidateBlockchainData, model.ModeForKind(model.KindIssuerBalance))
	assert.Equal(t, model.InvalidateUserDefinedData, model.ModeForKind(model.KindAssetLabel))
	assert.Equal(t, model.InvalidateUserDefinedData, model.ModeForKind(model.KindAssetWxLabel))
}

func TestAllKindsCoversEveryTableNameOnce(t *testing.T) {
	seen := make(map[model.EntityKind]bool)
	for _, k := range model.AllKinds {
		assert.False(t, seen[k], "duplicate kind %q in AllKinds", k)
		seen[k] = true
	}
	assert.Len(t, model.AllKinds, 10)
}
