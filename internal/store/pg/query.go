package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wavesplatform/assetindex/internal/model"
)

// Live returns the currently live row (superseded_by = MaxUID) for a
// natural key.
func (r *Repository) Live(ctx context.Context, kind model.EntityKind, naturalKey string) (model.NaturalKeyed, bool, error) {
	return r.selectOne(ctx, kind, naturalKey, "superseded_by = $1", model.MaxUID)
}

// PointInTime returns the unique row where uid <= asOfBlockUID < superseded_by
// (spec.md §4.3): the version of this natural key that was live at the
// moment the row identified by asOfBlockUID was inserted.
func (r *Repository) PointInTime(ctx context.Context, kind model.EntityKind, naturalKey string, asOfBlockUID int64) (model.NaturalKeyed, bool, error) {
	return r.selectOne(ctx, kind,
		naturalKey,
		"uid <= $1 AND superseded_by > $1",
		asOfBlockUID,
	)
}

func (r *Repository) selectOne(ctx context.Context, kind model.EntityKind, naturalKey string, extraPred string, extraArg any) (model.NaturalKeyed, bool, error) {
	table := tableName(kind)
	if table == "" {
		return nil, false, fmt.Errorf("select: unknown entity kind %q", kind)
	}
	// extraPred's own placeholder is always $1; naturalKeyPredicate's
	// placeholders start at $2 so they don't collide.
	wherePred, whereArgs := naturalKeyPredicate(kind, naturalKey, 2)
	args := append([]any{extraArg}, whereArgs...)

	cols, scan := columnsFor(kind)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s AND %s ORDER BY uid DESC LIMIT 1`,
		cols, table, extraPred, wherePred)

	row := r.reader.QueryRow(ctx, query, args...)
	payload, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("select %s: %w", table, err)
	}
	return payload, true, nil
}

// columnsFor returns the SELECT column list and a row-scanning closure for
// one entity kind, in matching order.
func columnsFor(kind model.EntityKind) (string, func(pgx.Row) (model.NaturalKeyed, error)) {
	switch kind {
	case model.KindAsset:
		return "uid, block_uid, superseded_by, asset_id, name, description, ticker, issuer, precision, smart, nft, reissuable, min_sponsored_fee, quantity, script",
			func(row pgx.Row) (model.NaturalKeyed, error) {
				var v model.Asset
				var script []byte
				err := row.Scan(&v.UID, &v.BlockUID, &v.SupersededBy, &v.AssetID, &v.Name, &v.Description, &v.Ticker, &v.Issuer, &v.Precision, &v.Smart, &v.NFT, &v.Reissuable, &v.MinSponsoredFee, &v.Quantity, &script)
				if err == nil && len(script) > 0 {
					v.Script = json.RawMessage(script)
				}
				return v, err
			}

	case model.KindAssetName:
		return "uid, block_uid, superseded_by, asset_id, name",
			func(row pgx.Row) (model.NaturalKeyed, error) {
				var v model.AssetName
				err := row.Scan(&v.UID, &v.BlockUID, &v.SupersededBy, &v.AssetID, &v.Name)
				return v, err
			}

	case model.KindAssetDescription:
		return "uid, block_uid, superseded_by, asset_id, description",
			func(row pgx.Row) (model.NaturalKeyed, error) {
				var v model.AssetDescription
				err := row.Scan(&v.UID, &v.BlockUID, &v.SupersededBy, &v.AssetID, &v.Description)
				return v, err
			}

	case model.KindAssetTicker:
		return "uid, block_uid, superseded_by, asset_id, ticker",
			func(row pgx.Row) (model.NaturalKeyed, error) {
				var v model.AssetTicker
				err := row.Scan(&v.UID, &v.BlockUID, &v.SupersededBy, &v.AssetID, &v.Ticker)
				return v, err
			}

	case model.KindAssetLabel:
		return "uid, block_uid, superseded_by, asset_id, labels",
			func(row pgx.Row) (model.NaturalKeyed, error) {
				var v model.AssetLabel
				err := row.Scan(&v.UID, &v.BlockUID, &v.SupersededBy, &v.AssetID, &v.Labels)
				return v, err
			}

	case model.KindAssetWxLabel:
		return "uid, block_uid, superseded_by, asset_id, label",
			func(row pgx.Row) (model.NaturalKeyed, error) {
				var v model.AssetWxLabel
				err := row.Scan(&v.UID, &v.BlockUID, &v.SupersededBy, &v.AssetID, &v.Label)
				return v, err
			}

	case model.KindDataEntry:
		return "uid, block_uid, superseded_by, address, key, value_type, value_int, value_bool, value_binary, value_string",
			func(row pgx.Row) (model.NaturalKeyed, error) {
				var v model.DataEntry
				var valueType string
				var binary []byte
				err := row.Scan(&v.UID, &v.BlockUID, &v.SupersededBy, &v.Address, &v.Key, &valueType, &v.ValueInt, &v.ValueBool, &binary, &v.ValueString)
				v.ValueType = model.DataEntryValueType(valueType)
				v.ValueBinary = binary
				return v, err
			}

	case model.KindIssuerBalance:
		return "uid, block_uid, superseded_by, issuer, balance",
			func(row pgx.Row) (model.NaturalKeyed, error) {
				var v model.IssuerBalance
				err := row.Scan(&v.UID, &v.BlockUID, &v.SupersededBy, &v.Issuer, &v.Balance)
				return v, err
			}

	case model.KindOutLeasing:
		return "uid, block_uid, superseded_by, address, amount",
			func(row pgx.Row) (model.NaturalKeyed, error) {
				var v model.OutLeasing
				err := row.Scan(&v.UID, &v.BlockUID, &v.SupersededBy, &v.Address, &v.Amount)
				return v, err
			}

	case model.KindPredefinedVerification:
		return "uid, block_uid, superseded_by, asset_id, ticker, status",
			func(row pgx.Row) (model.NaturalKeyed, error) {
				var v model.PredefinedVerification
				var status string
				err := row.Scan(&v.UID, &v.BlockUID, &v.SupersededBy, &v.AssetID, &v.Ticker, &status)
				v.Status = model.VerificationStatus(status)
				return v, err
			}

	default:
		return "", func(pgx.Row) (model.NaturalKeyed, error) {
			return nil, fmt.Errorf("columnsFor: unknown entity kind %q", kind)
		}
	}
}

// IssuerBalance returns the live cumulative balance for issuer, or ok=false
// if no IssuerBalance row has ever been projected for it (distinct from a
// balance of zero).
func (r *Repository) IssuerBalance(ctx context.Context, issuer string) (int64, bool, error) {
	payload, ok, err := r.Live(ctx, model.KindIssuerBalance, issuer)
	if err != nil || !ok {
		return 0, ok, err
	}
	return payload.(model.IssuerBalance).Balance, true, nil
}

// OutLeasing returns the live cumulative leased-out amount for address, or
// ok=false if address has never leased.
func (r *Repository) OutLeasing(ctx context.Context, address string) (int64, bool, error) {
	payload, ok, err := r.Live(ctx, model.KindOutLeasing, address)
	if err != nil || !ok {
		return 0, ok, err
	}
	return payload.(model.OutLeasing).Amount, true, nil
}
