// Package interfaces defines service contracts for Tally
package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	LedgerStore() LedgerStore

	// DataPath returns the base data directory path.
	DataPath() string

	// Lifecycle
	Close() error
}

// ExchangeRateStore looks up stored exchange rates.
type ExchangeRateStore interface {
	// FindExchangeRate returns the rate of currency relative to the stored
	// base currency, or nil when none is stored.
	FindExchangeRate(ctx context.Context, currency string) (*models.ExchangeRate, error)
}

// CategoryStore looks up categories.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	// FindCategory returns nil when no category has the id. Synthetic
	// categories resolve without a lookup.
	FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

// SettingsStore holds user-level settings.
type SettingsStore interface {
	// BaseCurrency returns the user's base currency.
	BaseCurrency(ctx context.Context) (string, error)
}

// TransactionRecord is a stored transaction before account, category and tag
// references are resolved. A nil ToAmount means the same as Amount.
type TransactionRecord struct {
	ID          uuid.UUID              `json:"id"`
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	Amount      decimal.Decimal        `json:"amount"`
	Type        models.TransactionType `json:"type"`
	DateTime    *time.Time             `json:"date_time,omitempty"`
	AccountID   uuid.UUID              `json:"account_id"`
	ToAccountID *uuid.UUID             `json:"to_account_id,omitempty"`
	ToAmount    *decimal.Decimal       `json:"to_amount,omitempty"`
	CategoryID  *uuid.UUID             `json:"category_id,omitempty"`
	DueDate     *time.Time             `json:"due_date,omitempty"`
	Deleted     bool                   `json:"deleted,omitempty"`
}

// LedgerStore is the persistence collaborator of the aggregation pipeline.
type LedgerStore interface {
	ExchangeRateStore
	CategoryStore
	SettingsStore

	// Transactions
	ListTransactions(ctx context.Context) ([]TransactionRecord, error)
	// ListTransactionsInRange returns transactions whose timestamp or due
	// date lies in [start, end]. Planned transactions are not included.
	ListTransactionsInRange(ctx context.Context, start, end time.Time) ([]TransactionRecord, error)
	SaveTransaction(ctx context.Context, rec TransactionRecord) error
	DeleteTransaction(ctx context.Context, id uuid.UUID) error

	// Accounts
	ListAccounts(ctx context.Context) ([]models.Account, error)
	FindAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	SaveAccount(ctx context.Context, account models.Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error

	// Categories
	SaveCategory(ctx context.Context, category models.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	// Exchange rates
	SaveExchangeRate(ctx context.Context, rate models.ExchangeRate) error

	// Tags
	ListTags(ctx context.Context) ([]models.Tag, error)
	ListTagsForTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Tag, error)
	SaveTag(ctx context.Context, tag models.Tag) error
	AssociateTag(ctx context.Context, transactionID, tagID uuid.UUID) error

	// Settings
	SetBaseCurrency(ctx context.Context, currency string) error

	Close() error
}
