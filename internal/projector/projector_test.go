package projector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavesplatform/assetindex/internal/events"
	"github.com/wavesplatform/assetindex/internal/model"
	"github.com/wavesplatform/assetindex/internal/projector"
)

func blockEvent(txs ...events.Transaction) events.BlockchainEvent {
	return events.BlockchainEvent{
		Kind:  events.KindBlock,
		Block: &events.BlockEvent{Height: 10, ID: "blk10", Transactions: txs},
	}
}

func TestProjectIssueTransaction(t *testing.T) {
	tx := events.Transaction{
		Type: projector.TxIssue, AssetID: "asset1", Sender: "issuer1", Recipient: "MyToken", Amount: 1000,
	}
	updates, err := projector.Project(blockEvent(tx), 42, projector.PriorState{})
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, model.KindAsset, updates[0].Kind)
	asset := updates[0].Payload.(model.Asset)
	assert.Equal(t, "asset1", asset.AssetID)
	assert.Equal(t, "issuer1", asset.Issuer)
	assert.Equal(t, int64(1000), asset.Quantity)
	assert.Equal(t, int64(42), asset.BlockUID)
	assert.Equal(t, model.MaxUID, asset.SupersededBy)

	assert.Equal(t, model.KindAssetName, updates[1].Kind)
	name := updates[1].Payload.(model.AssetName)
	assert.Equal(t, "MyToken", name.Name)
}

func TestProjectUpdateAssetInfoDispatchesByKey(t *testing.T) {
	tx := events.Transaction{
		Type:    projector.TxUpdateAssetInfo,
		AssetID: "asset1",
		DataEntries: []events.DataEntryDelta{
			{Key: "name", String: "NewName"},
			{Key: "description", String: "NewDesc"},
			{Key: "ticker", String: "TICK"},
			{Key: "unknown", String: "ignored"},
		},
	}
	updates, err := projector.Project(blockEvent(tx), 1, projector.PriorState{})
	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.Equal(t, model.KindAssetName, updates[0].Kind)
	assert.Equal(t, model.KindAssetDescription, updates[1].Kind)
	assert.Equal(t, model.KindAssetTicker, updates[2].Kind)
}

func TestProjectDataEntryTransactionTypedValues(t *testing.T) {
	tx := events.Transaction{
		Type:   projector.TxDataEntry,
		Sender: "addr1",
		DataEntries: []events.DataEntryDelta{
			{Key: "k_int", Type: "integer", Int: 7},
			{Key: "k_bool", Type: "boolean", Bool: true},
			{Key: "k_bin", Type: "binary", Binary: []byte{1, 2, 3}},
			{Key: "k_str", Type: "string", String: "hi"},
		},
	}
	updates, err := projector.Project(blockEvent(tx), 1, projector.PriorState{})
	require.NoError(t, err)
	require.Len(t, updates, 4)
	de0 := updates[0].Payload.(model.DataEntry)
	assert.Equal(t, int64(7), de0.ValueInt)
	de1 := updates[1].Payload.(model.DataEntry)
	assert.True(t, de1.ValueBool)
	de2 := updates[2].Payload.(model.DataEntry)
	assert.Equal(t, []byte{1, 2, 3}, de2.ValueBinary)
	de3 := updates[3].Payload.(model.DataEntry)
	assert.Equal(t, "hi", de3.ValueString)
}

func TestProjectLeaseAccumulatesAgainstPriorState(t *testing.T) {
	tx := events.Transaction{Type: projector.TxLease, Sender: "addr1", Amount: 500}
	prior := projector.PriorState{OutLeasings: map[string]int64{"addr1": 200}}
	updates, err := projector.Project(blockEvent(tx), 1, prior)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	ol := updates[0].Payload.(model.OutLeasing)
	assert.Equal(t, int64(700), ol.Amount)
	// prior must not be mutated by Project
	assert.Equal(t, int64(200), prior.OutLeasings["addr1"])
}

func TestProjectLeaseCancelGoingNegativeIsFatal(t *testing.T) {
	tx := events.Transaction{Type: projector.TxLeaseCancel, Sender: "addr1", Amount: 100}
	prior := projector.PriorState{OutLeasings: map[string]int64{"addr1": 50}}
	_, err := projector.Project(blockEvent(tx), 1, prior)
	require.Error(t, err)
	var negErr *projector.ErrNegativeDerived
	require.ErrorAs(t, err, &negErr)
	assert.Equal(t, model.KindOutLeasing, negErr.Kind)
	assert.Equal(t, "addr1", negErr.Key)
}

func TestProjectIssuerPaymentGoingNegativeIsFatal(t *testing.T) {
	tx := events.Transaction{Type: projector.TxIssuerPayment, Sender: "issuer1", Amount: -10}
	_, err := projector.Project(blockEvent(tx), 1, projector.PriorState{})
	require.Error(t, err)
	var negErr *projector.ErrNegativeDerived
	require.ErrorAs(t, err, &negErr)
	assert.Equal(t, model.KindIssuerBalance, negErr.Kind)
}

func TestProjectMultipleTransactionsPreserveOrderAndCumulate(t *testing.T) {
	txs := []events.Transaction{
		{Type: projector.TxLease, Sender: "addr1", Amount: 100},
		{Type: projector.TxLease, Sender: "addr1", Amount: 50},
		{Type: projector.TxLeaseCancel, Sender: "addr1", Amount: 30},
	}
	updates, err := projector.Project(blockEvent(txs...), 1, projector.PriorState{})
	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.Equal(t, int64(100), updates[0].Payload.(model.OutLeasing).Amount)
	assert.Equal(t, int64(150), updates[1].Payload.(model.OutLeasing).Amount)
	assert.Equal(t, int64(120), updates[2].Payload.(model.OutLeasing).Amount)
}

func TestProjectMicroblockDelegatesToSameLogicAsBlock(t *testing.T) {
	tx := events.Transaction{Type: projector.TxIssue, AssetID: "a1", Sender: "i1", Recipient: "N", Amount: 1}
	ev := events.BlockchainEvent{
		Kind:       events.KindMicroblock,
		Microblock: &events.MicroblockEvent{ReferenceBlockID: "blk10", Transactions: []events.Transaction{tx}},
	}
	updates, err := projector.Project(ev, 1, projector.PriorState{})
	require.NoError(t, err)
	assert.Len(t, updates, 2)
}

func TestProjectUpdatesBatchEmitsDataEntryWrites(t *testing.T) {
	ev := events.BlockchainEvent{
		Kind: events.KindUpdatesBatch,
		Batch: &events.UpdatesBatchEvent{
			Height: 5, ID: "blk5",
			Diffs: []events.StateDiff{
				{Address: "addr1", Key: "k1", Value: "v1"},
				{Address: "addr1", Key: "k2", Value: "v2"},
			},
		},
	}
	updates, err := projector.Project(ev, 5, projector.PriorState{})
	require.NoError(t, err)
	require.Len(t, updates, 2)
	for _, u := range updates {
		assert.Equal(t, model.KindDataEntry, u.Kind)
		de := u.Payload.(model.DataEntry)
		assert.Equal(t, model.DataEntryString, de.ValueType)
	}
	assert.Equal(t, "v1", updates[0].Payload.(model.DataEntry).ValueString)
}

func TestProjectRollbackReturnsNoUpdates(t *testing.T) {
	ev := events.BlockchainEvent{Kind: events.KindRollback, Rollback: &events.RollbackEvent{ToBlockID: "blk3"}}
	updates, err := projector.Project(ev, 1, projector.PriorState{})
	require.NoError(t, err)
	assert.Nil(t, updates)
}
