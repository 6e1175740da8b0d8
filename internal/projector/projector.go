// Package projector implements the Event Projector (spec.md §4.2): a pure,
// side-effect-free function mapping one BlockchainEvent plus a read-only
// view of prior live state to an ordered list of per-entity-kind Updates.
package projector

import (
	"fmt"

	"github.com/wavesplatform/assetindex/internal/events"
	"github.com/wavesplatform/assetindex/internal/model"
)

// Transaction type tags understood by the projector. These are this
// implementation's concrete vocabulary for "transactions" in spec.md §4.2;
// the wire layer (internal/events) carries them opaquely as Transaction.Type.
const (
	TxIssue           int32 = 1
	TxUpdateAssetInfo int32 = 2
	TxSponsorship     int32 = 3
	TxDataEntry       int32 = 4
	TxLease           int32 = 5
	TxLeaseCancel     int32 = 6
	TxIssuerPayment   int32 = 7 // Amount is a signed delta applied to Sender's issuer balance
)

// PriorState is the read-only view of current live state the Projector
// needs to compute cumulative deltas (issuer balances, out-leasing). The
// Coordinator populates this from the Repository before calling Project;
// the Projector itself performs no I/O, keeping it pure.
type PriorState struct {
	IssuerBalances map[string]int64 // issuer address -> current live balance
	OutLeasings    map[string]int64 // address -> current live leased-out amount
}

// ErrNegativeDerived is returned (wrapped) when a cumulative balance would
// go negative, a fatal projection error per spec.md §4.2/§7.
type ErrNegativeDerived struct {
	Kind    model.EntityKind
	Key     string
	Balance int64
}

func (e *ErrNegativeDerived) Error() string {
	return fmt.Sprintf("%s %q would go negative: %d", e.Kind, e.Key, e.Balance)
}

// Project maps one BlockchainEvent to an ordered list of Updates,
// preserving intra-block order, given blockUID (the Block row this event's
// rows will be anchored to) and prior for cumulative derivations.
func Project(ev events.BlockchainEvent, blockUID int64, prior PriorState) ([]model.Update, error) {
	switch ev.Kind {
	case events.KindBlock:
		return projectTxs(ev.Block.Transactions, blockUID, prior)
	case events.KindMicroblock:
		return projectTxs(ev.Microblock.Transactions, blockUID, prior)
	case events.KindUpdatesBatch:
		return projectBatch(ev.Batch, blockUID)
	case events.KindRollback:
		// Rollback carries no Updates; the Coordinator drives rollback_to
		// directly against the Repository.
		return nil, nil
	default:
		return nil, fmt.Errorf("projector: unknown event kind %d", ev.Kind)
	}
}

func projectTxs(txs []events.Transaction, blockUID int64, prior PriorState) ([]model.Update, error) {
	issuerBalances := cloneInt64Map(prior.IssuerBalances)
	outLeasings := cloneInt64Map(prior.OutLeasings)

	var updates []model.Update
	for _, tx := range txs {
		switch tx.Type {
		case TxIssue:
			updates = append(updates,
				model.Update{Kind: model.KindAsset, Payload: model.Asset{
					BlockUID: blockUID, SupersededBy: model.MaxUID,
					AssetID: tx.AssetID, Name: tx.Recipient, Issuer: tx.Sender,
					Quantity: tx.Amount,
				}},
				model.Update{Kind: model.KindAssetName, Payload: model.AssetName{
					BlockUID: blockUID, SupersededBy: model.MaxUID,
					AssetID: tx.AssetID, Name: tx.Recipient,
				}},
			)

		case TxUpdateAssetInfo:
			for _, de := range tx.DataEntries {
				switch de.Key {
				case "name":
					updates = append(updates, model.Update{Kind: model.KindAssetName, Payload: model.AssetName{
						BlockUID: blockUID, SupersededBy: model.MaxUID, AssetID: tx.AssetID, Name: de.String,
					}})
				case "description":
					updates = append(updates, model.Update{Kind: model.KindAssetDescription, Payload: model.AssetDescription{
						BlockUID: blockUID, SupersededBy: model.MaxUID, AssetID: tx.AssetID, Description: de.String,
					}})
				case "ticker":
					updates = append(updates, model.Update{Kind: model.KindAssetTicker, Payload: model.AssetTicker{
						BlockUID: blockUID, SupersededBy: model.MaxUID, AssetID: tx.AssetID, Ticker: de.String,
					}})
				}
			}

		case TxSponsorship:
			updates = append(updates, model.Update{Kind: model.KindAsset, Payload: model.Asset{
				BlockUID: blockUID, SupersededBy: model.MaxUID,
				AssetID: tx.AssetID, MinSponsoredFee: tx.Amount,
			}})

		case TxDataEntry:
			for _, de := range tx.DataEntries {
				row := model.DataEntry{
					BlockUID: blockUID, SupersededBy: model.MaxUID,
					Address: tx.Sender, Key: de.Key,
					ValueType: model.DataEntryValueType(de.Type),
				}
				switch row.ValueType {
				case model.DataEntryInt:
					row.ValueInt = de.Int
				case model.DataEntryBool:
					row.ValueBool = de.Bool
				case model.DataEntryBinary:
					row.ValueBinary = de.Binary
				case model.DataEntryString:
					row.ValueString = de.String
				}
				updates = append(updates, model.Update{Kind: model.KindDataEntry, Payload: row})
			}

		case TxLease:
			next := outLeasings[tx.Sender] + tx.Amount
			if next < 0 {
				return nil, &ErrNegativeDerived{Kind: model.KindOutLeasing, Key: tx.Sender, Balance: next}
			}
			outLeasings[tx.Sender] = next
			updates = append(updates, model.Update{Kind: model.KindOutLeasing, Payload: model.OutLeasing{
				BlockUID: blockUID, SupersededBy: model.MaxUID, Address: tx.Sender, Amount: next,
			}})

		case TxLeaseCancel:
			next := outLeasings[tx.Sender] - tx.Amount
			if next < 0 {
				return nil, &ErrNegativeDerived{Kind: model.KindOutLeasing, Key: tx.Sender, Balance: next}
			}
			outLeasings[tx.Sender] = next
			updates = append(updates, model.Update{Kind: model.KindOutLeasing, Payload: model.OutLeasing{
				BlockUID: blockUID, SupersededBy: model.MaxUID, Address: tx.Sender, Amount: next,
			}})

		case TxIssuerPayment:
			next := issuerBalances[tx.Sender] + tx.Amount
			if next < 0 {
				return nil, &ErrNegativeDerived{Kind: model.KindIssuerBalance, Key: tx.Sender, Balance: next}
			}
			issuerBalances[tx.Sender] = next
			updates = append(updates, model.Update{Kind: model.KindIssuerBalance, Payload: model.IssuerBalance{
				BlockUID: blockUID, SupersededBy: model.MaxUID, Issuer: tx.Sender, Balance: next,
			}})
		}
	}
	return updates, nil
}

// projectBatch handles the merged UpdatesBatch form (spec.md §4.1): state
// diffs are applied directly as data-entry-shaped writes, one per diff, in
// order.
func projectBatch(b *events.UpdatesBatchEvent, blockUID int64) ([]model.Update, error) {
	updates := make([]model.Update, 0, len(b.Diffs))
	for _, d := range b.Diffs {
		updates = append(updates, model.Update{Kind: model.KindDataEntry, Payload: model.DataEntry{
			BlockUID: blockUID, SupersededBy: model.MaxUID,
			Address: d.Address, Key: d.Key,
			ValueType: model.DataEntryString, ValueString: d.Value,
		}})
	}
	return updates, nil
}

func cloneInt64Map(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
