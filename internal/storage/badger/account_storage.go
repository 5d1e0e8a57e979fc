package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/tally/internal/models"
)

// ListAccounts returns all accounts ordered by their ordering key.
func (s *Store) ListAccounts(_ context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.Find(&accounts, nil); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].OrderNum < accounts[j].OrderNum
	})
	return accounts, nil
}

// FindAccount returns the account with id, or nil when there is none.
func (s *Store) FindAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := s.db.Get(id.String(), &account); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return &account, nil
}

// SaveAccount inserts or replaces an account.
func (s *Store) SaveAccount(_ context.Context, account models.Account) error {
	if account.ID == uuid.Nil {
		return fmt.Errorf("account id is required")
	}
	if err := s.db.Upsert(account.ID.String(), account); err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.ID, err)
	}
	return nil
}

// DeleteAccount removes an account. Transactions that still reference it
// surface as integrity issues when resolved.
func (s *Store) DeleteAccount(_ context.Context, id uuid.UUID) error {
	if err := s.db.Delete(id.String(), models.Account{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete account %s: %w", id, err)
	}
	return nil
}

// ListCategories returns the user's categories ordered by their ordering key.
// Synthetic categories are not stored and not listed.
func (s *Store) ListCategories(_ context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.Find(&categories, nil); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].OrderNum < categories[j].OrderNum
	})
	return categories, nil
}

// FindCategory returns the category with id, or nil when there is none.
// Synthetic categories resolve without touching the database.
func (s *Store) FindCategory(_ context.Context, id uuid.UUID) (*models.Category, error) {
	if cat, ok := models.SyntheticCategory(id); ok {
		return &cat, nil
	}
	var category models.Category
	if err := s.db.Get(id.String(), &category); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category %s: %w", id, err)
	}
	return &category, nil
}

// SaveCategory inserts or replaces a category. A category may only be
// nested one level deep.
func (s *Store) SaveCategory(ctx context.Context, category models.Category) error {
	if category.ID == uuid.Nil {
		return fmt.Errorf("category id is required")
	}
	if models.IsSyntheticCategory(category.ID) {
		return fmt.Errorf("category %s is reserved", category.ID)
	}
	if category.ParentID != nil {
		if *category.ParentID == category.ID {
			return fmt.Errorf("category %s cannot be its own parent", category.ID)
		}
		parent, err := s.FindCategory(ctx, *category.ParentID)
		if err != nil {
			return err
		}
		if parent != nil && parent.IsSubCategory() {
			return fmt.Errorf("parent %s of category %s is itself a sub-category", parent.ID, category.ID)
		}
	}
	if err := s.db.Upsert(category.ID.String(), category); err != nil {
		return fmt.Errorf("failed to save category %s: %w", category.ID, err)
	}
	return nil
}

// DeleteCategory removes a category.
func (s *Store) DeleteCategory(_ context.Context, id uuid.UUID) error {
	if err := s.db.Delete(id.String(), models.Category{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete category %s: %w", id, err)
	}
	return nil
}
