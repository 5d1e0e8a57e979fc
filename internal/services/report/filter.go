// Package report runs filtered report requests over the ledger: stats,
// date-grouped history and the category breakdown.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// ErrInvalidFilter is returned for filters that cannot select anything.
var ErrInvalidFilter = errors.New("invalid report filter")

// Filter selects the transactions a report is built from. Nil From/To leave
// the period open on that side; empty keyword and tag lists disable those
// checks.
type Filter struct {
	Types       []models.TransactionType `json:"types"`
	From        *time.Time               `json:"from,omitempty"`
	To          *time.Time               `json:"to,omitempty"`
	AccountIDs  []uuid.UUID              `json:"account_ids"`
	CategoryIDs []uuid.UUID              `json:"category_ids"`

	MinAmount *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`

	IncludeKeywords []string    `json:"include_keywords,omitempty"`
	ExcludeKeywords []string    `json:"exclude_keywords,omitempty"`
	TagIDs          []uuid.UUID `json:"tag_ids,omitempty"`

	TreatTransfersAsIncomeExpense bool                 `json:"treat_transfers_as_income_expense"`
	Mode                          models.BreakdownMode `json:"mode,omitempty"`

	// Currency overrides the stored base currency for totals.
	Currency string `json:"currency,omitempty"`
}

// Validate rejects filters with nothing selected, unknown types or modes, and
// inverted ranges.
func (f Filter) Validate() error {
	if len(f.Types) == 0 {
		return fmt.Errorf("%w: no transaction types selected", ErrInvalidFilter)
	}
	for _, t := range f.Types {
		if !models.ValidTransactionType(t) {
			return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidFilter, t)
		}
	}
	if len(f.AccountIDs) == 0 {
		return fmt.Errorf("%w: no accounts selected", ErrInvalidFilter)
	}
	if len(f.CategoryIDs) == 0 {
		return fmt.Errorf("%w: no categories selected", ErrInvalidFilter)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return fmt.Errorf("%w: period starts after it ends", ErrInvalidFilter)
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MinAmount.GreaterThan(*f.MaxAmount) {
		return fmt.Errorf("%w: min amount exceeds max amount", ErrInvalidFilter)
	}
	if f.Mode != "" && !models.ValidBreakdownMode(f.Mode) {
		return fmt.Errorf("%w: unknown breakdown mode %q", ErrInvalidFilter, f.Mode)
	}
	return nil
}

// BreakdownMode returns the filter mode, expense when unset.
func (f Filter) BreakdownMode() models.BreakdownMode {
	if f.Mode == "" {
		return models.ModeExpense
	}
	return f.Mode
}

// Apply returns the transactions matching every criterion, preserving order.
// Amount bounds are compared in base currency using converter.
func (f Filter) Apply(ctx context.Context, converter interfaces.ExchangeConverter, base string, txs []models.Transaction) ([]models.Transaction, error) {
	types := make(map[models.TransactionType]bool, len(f.Types))
	for _, t := range f.Types {
		types[t] = true
	}
	accounts := idSet(f.AccountIDs)
	categories := idSet(f.CategoryIDs)
	tags := idSet(f.TagIDs)
	include := normalizeKeywords(f.IncludeKeywords)
	exclude := normalizeKeywords(f.ExcludeKeywords)

	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if tx.IsPlanned() || !types[tx.Type] {
			continue
		}
		if !f.inPeriod(tx) || !matchesAccount(tx, accounts) || !matchesCategory(tx, categories) {
			continue
		}
		if !matchesKeywords(tx, include, exclude) {
			continue
		}
		if len(tags) > 0 && !tx.HasTag(tags) {
			continue
		}
		if !f.inAmountRange(ctx, converter, base, tx) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (f Filter) inPeriod(tx models.Transaction) bool {
	within := func(t *time.Time) bool {
		if t == nil {
			return false
		}
		if f.From != nil && t.Before(*f.From) {
			return false
		}
		if f.To != nil && t.After(*f.To) {
			return false
		}
		return true
	}
	return within(tx.DateTime) || within(tx.DueDate)
}

func (f Filter) inAmountRange(ctx context.Context, converter interfaces.ExchangeConverter, base string, tx models.Transaction) bool {
	if f.MinAmount == nil && f.MaxAmount == nil {
		return true
	}
	within := func(amount decimal.Decimal) bool {
		if f.MinAmount != nil && amount.LessThan(*f.MinAmount) {
			return false
		}
		if f.MaxAmount != nil && amount.GreaterThan(*f.MaxAmount) {
			return false
		}
		return true
	}

	source := converter.Exchange(ctx, tx.Amount, tx.Account.EffectiveCurrency(base), base)
	if within(source) {
		return true
	}
	if tx.Type == models.TxTransfer && tx.ToAccount != nil {
		return within(converter.Exchange(ctx, tx.ToAmount, tx.ToAccount.EffectiveCurrency(base), base))
	}
	return false
}

func matchesAccount(tx models.Transaction, accounts map[uuid.UUID]bool) bool {
	if accounts[tx.AccountID] {
		return true
	}
	return tx.ToAccountID != nil && accounts[*tx.ToAccountID]
}

// matchesCategory treats an uncategorized transaction as the Unspecified
// category.
func matchesCategory(tx models.Transaction, categories map[uuid.UUID]bool) bool {
	if tx.CategoryID == nil {
		return categories[models.UnspecifiedCategoryID]
	}
	return categories[*tx.CategoryID]
}

func matchesKeywords(tx models.Transaction, include, exclude []string) bool {
	if len(include) == 0 && len(exclude) == 0 {
		return true
	}
	text := strings.ToLower(tx.Title + "\n" + tx.Description)
	for _, word := range exclude {
		if strings.Contains(text, word) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, word := range include {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func normalizeKeywords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
