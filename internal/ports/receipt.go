package ports

import (
	"context"

	"stardate-formula/internal/types"
)

type ReceiptPort interface {
	WriteReceipt(receipt types.InstallReceipt) error
	ReadReceipt(prefix string) (types.InstallReceipt, error)
	RemoveReceipt(prefix string) error
}

type HistoryPort interface {
	Record(ctx context.Context, entry types.HistoryEntry) error
	List(ctx context.Context, name string, limit int) ([]types.HistoryEntry, error)
	Close() error
}
