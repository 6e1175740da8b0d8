package events

import (
	"fmt"

	"github.com/wavesplatform/assetindex/internal/events/wire"
)

func fromWire(w *wire.SubscribeEvent) (BlockchainEvent, error) {
	switch {
	case w.Block != nil:
		return BlockchainEvent{Kind: KindBlock, Block: blockFromWire(w.Block)}, nil
	case w.Microblock != nil:
		return BlockchainEvent{Kind: KindMicroblock, Microblock: microblockFromWire(w.Microblock)}, nil
	case w.Rollback != nil:
		return BlockchainEvent{Kind: KindRollback, Rollback: &RollbackEvent{ToBlockID: w.Rollback.ToBlockID}}, nil
	case w.Batch != nil:
		return BlockchainEvent{Kind: KindUpdatesBatch, Batch: batchFromWire(w.Batch)}, nil
	default:
		return BlockchainEvent{}, fmt.Errorf("subscribe event has no populated variant")
	}
}

func blockFromWire(b *wire.Block) *BlockEvent {
	return &BlockEvent{
		Height:       b.Height,
		ID:           b.ID,
		ParentID:     b.ParentID,
		Timestamp:    b.Timestamp,
		Transactions: txsFromWire(b.Transactions),
	}
}

func microblockFromWire(b *wire.Microblock) *MicroblockEvent {
	return &MicroblockEvent{
		ReferenceBlockID: b.ReferenceBlockID,
		Transactions:     txsFromWire(b.Transactions),
	}
}

func batchFromWire(b *wire.UpdatesBatch) *UpdatesBatchEvent {
	diffs := make([]StateDiff, len(b.Diffs))
	for i, d := range b.Diffs {
		diffs[i] = StateDiff{Address: d.Address, Key: d.Key, Value: d.Value}
	}
	return &UpdatesBatchEvent{Height: b.Height, ID: b.ID, Diffs: diffs}
}

func txsFromWire(in []*wire.Transaction) []Transaction {
	out := make([]Transaction, len(in))
	for i, t := range in {
		des := make([]DataEntryDelta, len(t.DataEntries))
		for j, de := range t.DataEntries {
			des[j] = DataEntryDelta{
				Address: de.Address,
				Key:     de.Key,
				Type:    de.Type,
				Int:     de.Int,
				Bool:    de.Bool,
				Binary:  de.Binary,
				String:  de.String_,
			}
		}
		out[i] = Transaction{
			ID:          t.ID,
			Type:        int32(t.Type),
			Sender:      t.Sender,
			Recipient:   t.Recipient,
			Amount:      t.Amount,
			AssetID:     t.AssetID,
			DataEntries: des,
		}
	}
	return out
}
