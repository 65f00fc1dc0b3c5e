package worker

import (
	"context"
	"fmt"
	"log/slog"

	"conti/internal/core"
	"conti/internal/events"
	"conti/internal/sheets"
	"conti/internal/storage"
)

// SyncWorker mirrors ledger changes to a spreadsheet. Events drive the
// incremental sync; Resync repairs rows missed while the worker was down.
type SyncWorker struct {
	store     storage.AccountStore
	sheets    sheets.LedgerWriter
	batchSize int
}

func NewSyncWorker(store storage.AccountStore, writer sheets.LedgerWriter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{store: store, sheets: writer, batchSize: batchSize}
}

// HandleEvent applies one account event. A returned error asks the
// transport to redeliver.
func (w *SyncWorker) HandleEvent(ctx context.Context, e events.AccountEvent) error {
	switch e.Type {
	case events.TransactionCreated:
		if e.Transaction == nil {
			slog.WarnContext(ctx, "Transaction event without payload", "account_id", e.AccountID)
			return nil
		}
		ref, err := w.sheets.AppendRow(ctx, sheets.RowFromTransaction(e.AccountID, e.AccountName, *e.Transaction))
		if err != nil {
			return fmt.Errorf("append ledger row: %w", err)
		}
		slog.InfoContext(ctx, "Synced transaction",
			"account_id", e.AccountID,
			"transaction_id", e.Transaction.ID,
			"sheets_ref", ref)

	case events.TransactionDeleted:
		if e.Transaction == nil {
			return nil
		}
		if err := w.sheets.DeleteTransactionRow(ctx, e.Transaction.ID); err != nil {
			return fmt.Errorf("delete ledger row: %w", err)
		}
		slog.InfoContext(ctx, "Removed transaction row",
			"account_id", e.AccountID,
			"transaction_id", e.Transaction.ID)

	case events.AccountDeleted:
		n, err := w.sheets.DeleteAccountRows(ctx, e.AccountID)
		if err != nil {
			return fmt.Errorf("delete account rows: %w", err)
		}
		slog.InfoContext(ctx, "Removed account rows", "account_id", e.AccountID, "rows", n)

	default:
		slog.DebugContext(ctx, "Ignoring event", "type", e.Type, "account_id", e.AccountID)
	}
	return nil
}

// Resync appends every stored transaction the sheet does not have yet,
// walking accounts in batches.
func (w *SyncWorker) Resync(ctx context.Context) (int, error) {
	present, err := w.sheets.TransactionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list mirrored transactions: %w", err)
	}

	synced, failed := 0, 0
	for offset := 0; ; offset += w.batchSize {
		batch, err := w.store.Find(ctx, core.AccountQuery{Limit: w.batchSize, Offset: offset, WithTransactions: true})
		if err != nil {
			return synced, fmt.Errorf("load accounts: %w", err)
		}

		for _, a := range batch {
			for _, tx := range a.Transactions {
				if _, ok := present[tx.ID]; ok {
					continue
				}
				if _, err := w.sheets.AppendRow(ctx, sheets.RowFromTransaction(a.ID, a.Name, tx)); err != nil {
					slog.ErrorContext(ctx, "Failed to sync transaction", "account_id", a.ID, "transaction_id", tx.ID, "error", err)
					failed++
					continue
				}
				present[tx.ID] = struct{}{}
				synced++
			}
		}

		if len(batch) < w.batchSize {
			break
		}
	}

	slog.InfoContext(ctx, "Resync completed", "synced", synced, "errors", failed)
	return synced, nil
}
