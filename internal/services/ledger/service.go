// Package ledger resolves stored transaction records into transaction
// snapshots with their accounts, categories and tags
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Compile-time interface check
var _ interfaces.LedgerResolver = (*Service)(nil)

// Service implements LedgerResolver
type Service struct {
	store  interfaces.LedgerStore
	logger *common.Logger
}

// NewService creates a new ledger resolver
func NewService(store interfaces.LedgerStore, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// LoadAll resolves every stored transaction, planned ones included.
func (s *Service) LoadAll(ctx context.Context) (*models.TransactionSet, error) {
	records, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return s.resolve(ctx, records)
}

// LoadRange resolves transactions whose timestamp or due date lies in
// [start, end].
func (s *Service) LoadRange(ctx context.Context, start, end time.Time) (*models.TransactionSet, error) {
	records, err := s.store.ListTransactionsInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions in range: %w", err)
	}
	return s.resolve(ctx, records)
}

// resolve attaches account, category and tag snapshots. A record whose
// source account is missing is excluded and reported as a
// DataIntegrityError; a missing destination account or category leaves
// that snapshot nil.
func (s *Service) resolve(ctx context.Context, records []interfaces.TransactionRecord) (*models.TransactionSet, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	accountByID := make(map[uuid.UUID]models.Account, len(accounts))
	for _, a := range accounts {
		accountByID[a.ID] = a
	}

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	categoryByID := make(map[uuid.UUID]models.Category, len(categories))
	for _, c := range categories {
		categoryByID[c.ID] = c
	}

	set := &models.TransactionSet{Transactions: make([]models.Transaction, 0, len(records))}
	for _, rec := range records {
		if rec.Deleted {
			continue
		}

		account, ok := accountByID[rec.AccountID]
		if !ok {
			issue := &models.DataIntegrityError{
				TransactionID: rec.ID,
				AccountID:     rec.AccountID,
				Field:         "account",
			}
			s.logger.Warn().
				Str("transaction_id", rec.ID.String()).
				Str("account_id", rec.AccountID.String()).
				Msg("Transaction references unknown account, excluding")
			set.Issues = append(set.Issues, issue)
			continue
		}

		tx := models.Transaction{
			ID:          rec.ID,
			Title:       rec.Title,
			Description: rec.Description,
			Amount:      rec.Amount,
			Type:        rec.Type,
			DateTime:    rec.DateTime,
			AccountID:   rec.AccountID,
			Account:     account,
			ToAccountID: rec.ToAccountID,
			ToAmount:    rec.Amount,
			CategoryID:  rec.CategoryID,
			DueDate:     rec.DueDate,
		}
		if rec.ToAmount != nil {
			tx.ToAmount = *rec.ToAmount
		}
		if rec.ToAccountID != nil {
			if to, ok := accountByID[*rec.ToAccountID]; ok {
				tx.ToAccount = &to
			} else {
				s.logger.Debug().
					Str("transaction_id", rec.ID.String()).
					Str("to_account_id", rec.ToAccountID.String()).
					Msg("Transfer destination account not found")
			}
		}
		if rec.CategoryID != nil {
			if cat, ok := categoryByID[*rec.CategoryID]; ok {
				tx.Category = &cat
			}
		}

		tags, err := s.store.ListTagsForTransaction(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list tags for transaction %s: %w", rec.ID, err)
		}
		tx.Tags = tags

		set.Transactions = append(set.Transactions, tx)
	}

	return set, nil
}
