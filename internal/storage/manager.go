// Package storage provides the top-level StorageManager that owns the
// ledger store.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/storage/badger"
)

// Manager implements interfaces.StorageManager.
type Manager struct {
	ledger *badger.Store
	path   string
	logger *common.Logger
}

// NewStorageManager opens the ledger store at the configured path. When the
// store has no base currency yet, the configured one is recorded.
func NewStorageManager(ctx context.Context, logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := badger.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger store: %w", err)
	}

	base, err := store.BaseCurrency(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to read base currency: %w", err)
	}
	if base == "" && config.BaseCurrency != "" {
		if err := store.SetBaseCurrency(ctx, config.BaseCurrency); err != nil {
			store.Close()
			return nil, err
		}
		base = config.BaseCurrency
	}

	logger.Info().
		Str("path", config.Storage.Path).
		Str("base_currency", base).
		Msg("Storage manager initialized")

	return &Manager{
		ledger: store,
		path:   config.Storage.Path,
		logger: logger,
	}, nil
}

func (m *Manager) LedgerStore() interfaces.LedgerStore {
	return m.ledger
}

func (m *Manager) DataPath() string {
	return m.path
}

func (m *Manager) Close() error {
	return m.ledger.Close()
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
