package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wavesplatform/assetindex/internal/model"
)

// tx is the store.Tx implementation: one pgx.Tx for the current batch.
type tx struct {
	pgxtx pgx.Tx
}

// parkedUID is a transient superseded_by value held, within one
// AppendVersions step, by the row that is about to be superseded.
const parkedUID = model.MaxUID - 1

// AppendVersions applies rows in order. For each row, the live row (if any)
// for the same natural key is first parked at parkedUID so the new row can
// be inserted as live without colliding with it in the (superseded_by,
// natural key) unique index; the parked row is then pointed at the new
// row's uid. This includes a row inserted earlier in this same call, which
// is how the projector's "last write in a block wins" tie-break
// (spec.md §4.2) falls out of the Repository's ordering contract without
// any special-casing in the projector itself.
func (t *tx) AppendVersions(ctx context.Context, kind model.EntityKind, rows []model.NaturalKeyed) error {
	table := tableName(kind)
	if table == "" {
		return fmt.Errorf("append_versions: unknown entity kind %q", kind)
	}
	for _, row := range rows {
		insertSQL, args, err := insertArgs(kind, row)
		if err != nil {
			return fmt.Errorf("append_versions(%s): %w", kind, err)
		}

		wherePred, whereArgs := naturalKeyPredicate(kind, row.NaturalKey(), 3)
		parkSQL := fmt.Sprintf(`UPDATE %s SET superseded_by = $1 WHERE superseded_by = $2 AND %s`, table, wherePred)
		if _, err := t.pgxtx.Exec(ctx, parkSQL, append([]any{parkedUID, model.MaxUID}, whereArgs...)...); err != nil {
			return fmt.Errorf("append_versions(%s): park prior live row: %w", kind, err)
		}

		var uid int64
		if err := t.pgxtx.QueryRow(ctx, insertSQL, args...).Scan(&uid); err != nil {
			return fmt.Errorf("append_versions(%s): insert: %w", kind, err)
		}

		supersedeSQL := fmt.Sprintf(
			`UPDATE %s SET superseded_by = $1 WHERE superseded_by = $2 AND uid <> $1 AND %s`,
			table, wherePred,
		)
		supersedeArgs := append([]any{uid, parkedUID}, whereArgs...)
		if _, err := t.pgxtx.Exec(ctx, supersedeSQL, supersedeArgs...); err != nil {
			return fmt.Errorf("append_versions(%s): supersede prior live row: %w", kind, err)
		}
	}
	return nil
}

// InsertBlock rejects heights that precede the current tip, and a
// non-microblock at the tip's own height; it does not itself detect forks (a parent_id mismatch at the same height) — that
// comparison needs the Coordinator's in-memory view of the chain it has
// built so far, since a microblock's "tip" is its own un-finalized key
// block and RollbackTo must have already run before a genuine fork's
// first diverging block reaches here.
func (t *tx) InsertBlock(ctx context.Context, b model.Block) (int64, error) {
	var lastHeight int64
	err := t.pgxtx.QueryRow(ctx, `SELECT COALESCE(MAX(height), -1) FROM block`).Scan(&lastHeight)
	if err != nil {
		return 0, fmt.Errorf("insert_block: read current tip: %w", err)
	}
	if b.Height < lastHeight || (b.Height == lastHeight && !b.IsMicroblock) {
		return 0, fmt.Errorf("insert_block: height %d does not follow tip %d", b.Height, lastHeight)
	}
	var uid int64
	err = t.pgxtx.QueryRow(ctx, `
		INSERT INTO block (height, id, parent_id, time_stamp, is_microblock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING uid`,
		b.Height, b.ID, nullIfEmpty(b.ParentID), b.TimeStamp, b.IsMicroblock,
	).Scan(&uid)
	if err != nil {
		return 0, fmt.Errorf("insert_block: %w", err)
	}
	return uid, nil
}

func (t *tx) Commit(ctx context.Context) error   { return t.pgxtx.Commit(ctx) }
func (t *tx) Rollback(ctx context.Context) error { return t.pgxtx.Rollback(ctx) }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// insertArgs returns the INSERT ... RETURNING uid statement and its bind
// arguments for one row of the given kind. SupersededBy is always inserted
// as model.MaxUID regardless of what the caller set, matching spec.md §4.3
// ("for each row: ... set superseded_by = MAX").
func insertArgs(kind model.EntityKind, row model.NaturalKeyed) (string, []any, error) {
	switch kind {
	case model.KindAsset:
		v, ok := row.(model.Asset)
		if !ok {
			return "", nil, fmt.Errorf("expected model.Asset, got %T", row)
		}
		return `INSERT INTO asset (block_uid, superseded_by, asset_id, name, description, ticker, issuer, precision, smart, nft, reissuable, min_sponsored_fee, quantity, script)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING uid`,
			[]any{v.BlockUID, model.MaxUID, v.AssetID, v.Name, v.Description, v.Ticker, v.Issuer, v.Precision, v.Smart, v.NFT, v.Reissuable, v.MinSponsoredFee, v.Quantity, nullIfEmptyBytes(v.Script)}, nil

	case model.KindAssetName:
		v, ok := row.(model.AssetName)
		if !ok {
			return "", nil, fmt.Errorf("expected model.AssetName, got %T", row)
		}
		return `INSERT INTO asset_name (block_uid, superseded_by, asset_id, name) VALUES ($1,$2,$3,$4) RETURNING uid`,
			[]any{v.BlockUID, model.MaxUID, v.AssetID, v.Name}, nil

	case model.KindAssetDescription:
		v, ok := row.(model.AssetDescription)
		if !ok {
			return "", nil, fmt.Errorf("expected model.AssetDescription, got %T", row)
		}
		return `INSERT INTO asset_description (block_uid, superseded_by, asset_id, description) VALUES ($1,$2,$3,$4) RETURNING uid`,
			[]any{v.BlockUID, model.MaxUID, v.AssetID, v.Description}, nil

	case model.KindAssetTicker:
		v, ok := row.(model.AssetTicker)
		if !ok {
			return "", nil, fmt.Errorf("expected model.AssetTicker, got %T", row)
		}
		return `INSERT INTO asset_ticker (block_uid, superseded_by, asset_id, ticker) VALUES ($1,$2,$3,$4) RETURNING uid`,
			[]any{v.BlockUID, model.MaxUID, v.AssetID, v.Ticker}, nil

	case model.KindAssetLabel:
		v, ok := row.(model.AssetLabel)
		if !ok {
			return "", nil, fmt.Errorf("expected model.AssetLabel, got %T", row)
		}
		return `INSERT INTO asset_label (block_uid, superseded_by, asset_id, labels) VALUES ($1,$2,$3,$4) RETURNING uid`,
			[]any{v.BlockUID, model.MaxUID, v.AssetID, v.Labels}, nil

	case model.KindAssetWxLabel:
		v, ok := row.(model.AssetWxLabel)
		if !ok {
			return "", nil, fmt.Errorf("expected model.AssetWxLabel, got %T", row)
		}
		return `INSERT INTO asset_wx_label (block_uid, superseded_by, asset_id, label) VALUES ($1,$2,$3,$4) RETURNING uid`,
			[]any{v.BlockUID, model.MaxUID, v.AssetID, v.Label}, nil

	case model.KindDataEntry:
		v, ok := row.(model.DataEntry)
		if !ok {
			return "", nil, fmt.Errorf("expected model.DataEntry, got %T", row)
		}
		return `INSERT INTO data_entry (block_uid, superseded_by, address, key, value_type, value_int, value_bool, value_binary, value_string)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING uid`,
			[]any{v.BlockUID, model.MaxUID, v.Address, v.Key, string(v.ValueType), v.ValueInt, v.ValueBool, nullIfEmptyBytes(v.ValueBinary), v.ValueString}, nil

	case model.KindIssuerBalance:
		v, ok := row.(model.IssuerBalance)
		if !ok {
			return "", nil, fmt.Errorf("expected model.IssuerBalance, got %T", row)
		}
		return `INSERT INTO issuer_balance (block_uid, superseded_by, issuer, balance) VALUES ($1,$2,$3,$4) RETURNING uid`,
			[]any{v.BlockUID, model.MaxUID, v.Issuer, v.Balance}, nil

	case model.KindOutLeasing:
		v, ok := row.(model.OutLeasing)
		if !ok {
			return "", nil, fmt.Errorf("expected model.OutLeasing, got %T", row)
		}
		return `INSERT INTO out_leasing (block_uid, superseded_by, address, amount) VALUES ($1,$2,$3,$4) RETURNING uid`,
			[]any{v.BlockUID, model.MaxUID, v.Address, v.Amount}, nil

	case model.KindPredefinedVerification:
		v, ok := row.(model.PredefinedVerification)
		if !ok {
			return "", nil, fmt.Errorf("expected model.PredefinedVerification, got %T", row)
		}
		return `INSERT INTO predefined_verification (block_uid, superseded_by, asset_id, ticker, status) VALUES ($1,$2,$3,$4,$5) RETURNING uid`,
			[]any{v.BlockUID, model.MaxUID, v.AssetID, v.Ticker, string(v.Status)}, nil

	default:
		return "", nil, fmt.Errorf("unknown entity kind %q", kind)
	}
}

func nullIfEmptyBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// naturalKeyPredicate returns the WHERE fragment (placeholders starting at
// startIdx) identifying the natural-key group a row belongs to, and its
// bind arguments. DataEntry's natural key is the composite (address, key);
// every other kind keys on asset_id, issuer, or address alone.
func naturalKeyPredicate(kind model.EntityKind, naturalKey string, startIdx int) (string, []any) {
	p1, p2 := fmt.Sprintf("$%d", startIdx), fmt.Sprintf("$%d", startIdx+1)
	switch kind {
	case model.KindDataEntry:
		address, key := splitDataEntryKey(naturalKey)
		return fmt.Sprintf("address = %s AND key = %s", p1, p2), []any{address, key}
	case model.KindIssuerBalance:
		return fmt.Sprintf("issuer = %s", p1), []any{naturalKey}
	case model.KindOutLeasing:
		return fmt.Sprintf("address = %s", p1), []any{naturalKey}
	default:
		return fmt.Sprintf("asset_id = %s", p1), []any{naturalKey}
	}
}

func splitDataEntryKey(nk string) (address, key string) {
	for i := 0; i < len(nk); i++ {
		if nk[i] == 0 {
			return nk[:i], nk[i+1:]
		}
	}
	return nk, ""
}
