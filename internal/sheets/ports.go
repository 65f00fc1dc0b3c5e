package sheets

import (
	"context"
	"time"

	"conti/internal/core"
)

// LedgerRow is one transaction as mirrored to a spreadsheet.
type LedgerRow struct {
	AccountID     string
	AccountName   string
	TransactionID string
	Type          string
	Description   string
	Value         core.Money
	CreatedAt     time.Time
}

// LedgerWriter mirrors account ledgers to an external sheet. Row identity is
// the transaction id, so every operation is safe to repeat.
type LedgerWriter interface {
	// AppendRow adds the row unless its transaction is already present.
	AppendRow(ctx context.Context, row LedgerRow) (rowRef string, err error)
	// DeleteTransactionRow removes the row of txID; a missing row is not an error.
	DeleteTransactionRow(ctx context.Context, txID string) error
	// DeleteAccountRows removes every row of accountID and reports how many.
	DeleteAccountRows(ctx context.Context, accountID string) (int, error)
	// TransactionIDs lists the transactions currently mirrored.
	TransactionIDs(ctx context.Context) (map[string]struct{}, error)
}

// RowFromTransaction builds the mirrored row of tx in account a.
func RowFromTransaction(accountID, accountName string, tx core.Transaction) LedgerRow {
	return LedgerRow{
		AccountID:     accountID,
		AccountName:   accountName,
		TransactionID: tx.ID,
		Type:          tx.Type,
		Description:   tx.Description,
		Value:         tx.Value,
		CreatedAt:     tx.CreatedAt,
	}
}
