package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType categorizes a transaction for aggregation.
type TransactionType string

const (
	TxIncome   TransactionType = "income"
	TxExpense  TransactionType = "expense"
	TxTransfer TransactionType = "transfer"
)

// validTransactionTypes lists all accepted transaction types.
var validTransactionTypes = map[TransactionType]bool{
	TxIncome:   true,
	TxExpense:  true,
	TxTransfer: true,
}

// ValidTransactionType returns true if t is a valid transaction type.
func ValidTransactionType(t TransactionType) bool {
	return validTransactionTypes[t]
}

// Account is a resolved snapshot of a user account.
type Account struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Currency         string    `json:"currency,omitempty"` // empty means the base currency
	Color            int32     `json:"color"`
	Icon             string    `json:"icon,omitempty"`
	IncludeInBalance bool      `json:"include_in_balance"`
	OrderNum         float64   `json:"order_num"`
	Deleted          bool      `json:"deleted,omitempty"`
}

// EffectiveCurrency returns the account currency, falling back to base.
// The fallback is derived and never persisted.
func (a Account) EffectiveCurrency(base string) string {
	if a.Currency == "" {
		return base
	}
	return a.Currency
}

// Category is a resolved snapshot of a category. A category is either
// top-level (ParentID nil) or a direct child of a top-level category.
type Category struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Color    int32      `json:"color"`
	Icon     string     `json:"icon,omitempty"`
	OrderNum float64    `json:"order_num"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

// IsSubCategory reports whether the category has a parent.
func (c Category) IsSubCategory() bool {
	return c.ParentID != nil
}

// Well-known identities of the synthetic categories. They never collide with
// user-created categories, which are assigned random (version 4) UUIDs.
var (
	UnspecifiedCategoryID      = uuid.MustParse("00000000-0000-0000-0000-00000000a001")
	AccountTransfersCategoryID = uuid.MustParse("00000000-0000-0000-0000-00000000a002")
)

// UnspecifiedCategory holds non-transfer transactions that have no category.
var UnspecifiedCategory = Category{
	ID:    UnspecifiedCategoryID,
	Name:  "Unspecified",
	Color: 0x939199,
}

// AccountTransfersCategory holds transfer transactions in category breakdowns.
var AccountTransfersCategory = Category{
	ID:    AccountTransfersCategoryID,
	Name:  "Account Transfers",
	Color: 0xFF6B6B,
	Icon:  "transfer",
}

// IsSyntheticCategory reports whether id belongs to one of the synthetic categories.
func IsSyntheticCategory(id uuid.UUID) bool {
	return id == UnspecifiedCategoryID || id == AccountTransfersCategoryID
}

// SyntheticCategory returns the synthetic category with the given id.
func SyntheticCategory(id uuid.UUID) (Category, bool) {
	switch id {
	case UnspecifiedCategoryID:
		return UnspecifiedCategory, true
	case AccountTransfersCategoryID:
		return AccountTransfersCategory, true
	}
	return Category{}, false
}

// Tag is a free-form label attached to transactions.
type Tag struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Color    int32     `json:"color"`
	Icon     string    `json:"icon,omitempty"`
	OrderNum float64   `json:"order_num"`
}

// ExchangeRate is the rate of Currency relative to BaseCurrency:
// one unit of BaseCurrency buys Rate units of Currency.
type ExchangeRate struct {
	BaseCurrency string          `json:"base_currency"`
	Currency     string          `json:"currency"`
	Rate         decimal.Decimal `json:"rate"`
}

// Transaction is a resolved transaction with account, category and tag snapshots.
// DateTime is nil for planned (due) transactions.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	DateTime    *time.Time      `json:"date_time,omitempty"`

	AccountID uuid.UUID `json:"account_id"`
	Account   Account   `json:"account"`

	ToAccountID *uuid.UUID      `json:"to_account_id,omitempty"`
	ToAccount   *Account        `json:"to_account,omitempty"`
	ToAmount    decimal.Decimal `json:"to_amount"`

	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Category   *Category  `json:"category,omitempty"`

	DueDate *time.Time `json:"due_date,omitempty"`
	Tags    []Tag      `json:"tags,omitempty"`
}

// IsPlanned reports whether the transaction has no actual timestamp.
func (t Transaction) IsPlanned() bool {
	return t.DateTime == nil
}

// BreakdownCategory returns the category the transaction is grouped under in
// category breakdowns, substituting the synthetic categories when it has none.
func (t Transaction) BreakdownCategory() Category {
	if t.Category != nil {
		return *t.Category
	}
	if t.Type == TxTransfer {
		return AccountTransfersCategory
	}
	return UnspecifiedCategory
}

// HasTag reports whether the transaction carries any of the given tags.
func (t Transaction) HasTag(ids map[uuid.UUID]bool) bool {
	for _, tag := range t.Tags {
		if ids[tag.ID] {
			return true
		}
	}
	return false
}

// TransactionSet is the result of resolving stored transactions. Transactions
// whose source account could not be resolved are excluded and reported in Issues.
type TransactionSet struct {
	Transactions []Transaction         `json:"transactions"`
	Issues       []*DataIntegrityError `json:"issues,omitempty"`
}
