package pg

import (
	"context"
	"fmt"

	"github.com/wavesplatform/assetindex/internal/model"
)

// RollbackTo deletes every Block with Height >= targetHeight — cascading,
// via the schema's ON DELETE CASCADE, to every versioned row anchored to
// them — then calls every reopen_<table>() function so rows that were
// superseded only by a now-deleted row become live again. Rows in
// surviving blocks change only by having superseded_by reset to the live
// sentinel; each reopen_<table>() checks every non-live row of its table.
//
// Every reopen_<table> is invoked unconditionally, for every kind in
// model.AllKinds, rather than only the kinds the deleted blocks are known
// to have touched — see DESIGN.md's Open Question decision on this point.
func (r *Repository) RollbackTo(ctx context.Context, targetHeight int64) error {
	pgxtx, err := r.writer.Begin(ctx)
	if err != nil {
		return fmt.Errorf("rollback_to: begin: %w", err)
	}
	defer pgxtx.Rollback(ctx)

	if _, err := pgxtx.Exec(ctx, `DELETE FROM block WHERE height >= $1`, targetHeight); err != nil {
		return fmt.Errorf("rollback_to: delete blocks: %w", err)
	}

	for _, kind := range model.AllKinds {
		table := tableName(kind)
		if table == "" {
			continue
		}
		if _, err := pgxtx.Exec(ctx, fmt.Sprintf(`SELECT reopen_%s()`, table)); err != nil {
			return fmt.Errorf("rollback_to: reopen_%s: %w", table, err)
		}
	}

	if err := pgxtx.Commit(ctx); err != nil {
		return fmt.Errorf("rollback_to: commit: %w", err)
	}
	return nil
}
