package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

type importLedgerFile struct {
	BaseCurrency  string                `json:"base_currency"`
	Accounts      []models.Account      `json:"accounts"`
	Categories    []models.Category     `json:"categories"`
	Tags          []models.Tag          `json:"tags"`
	ExchangeRates []models.ExchangeRate `json:"exchange_rates"`
	Transactions  []importTransaction   `json:"transactions"`
}

type importTransaction struct {
	interfaces.TransactionRecord
	TagIDs []uuid.UUID `json:"tag_ids,omitempty"`
}

// ImportLedgerFromFile reads a ledger JSON file and upserts its accounts,
// categories, tags, exchange rates and transactions. Records the store
// rejects are skipped and logged. Returns (imported count, skipped count, error).
func ImportLedgerFromFile(ctx context.Context, store interfaces.LedgerStore, logger *common.Logger, filePath string) (int, int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read ledger file %s: %w", filePath, err)
	}

	var file importLedgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, 0, fmt.Errorf("failed to parse ledger file %s: %w", filePath, err)
	}

	if file.BaseCurrency != "" {
		if err := store.SetBaseCurrency(ctx, file.BaseCurrency); err != nil {
			return 0, 0, fmt.Errorf("failed to set base currency: %w", err)
		}
	}

	imported, skipped := 0, 0
	record := func(kind string, id string, err error) {
		if err != nil {
			logger.Warn().Err(err).Str("kind", kind).Str("id", id).Msg("Skipped ledger record during import")
			skipped++
			return
		}
		imported++
	}

	for _, a := range file.Accounts {
		record("account", a.ID.String(), store.SaveAccount(ctx, a))
	}

	// Parents must exist before their sub-categories.
	categories := append([]models.Category(nil), file.Categories...)
	sort.SliceStable(categories, func(i, j int) bool {
		return !categories[i].IsSubCategory() && categories[j].IsSubCategory()
	})
	for _, c := range categories {
		record("category", c.ID.String(), store.SaveCategory(ctx, c))
	}

	for _, t := range file.Tags {
		record("tag", t.ID.String(), store.SaveTag(ctx, t))
	}

	for _, r := range file.ExchangeRates {
		record("exchange_rate", r.Currency, store.SaveExchangeRate(ctx, r))
	}

	for _, tx := range file.Transactions {
		if err := store.SaveTransaction(ctx, tx.TransactionRecord); err != nil {
			record("transaction", tx.ID.String(), err)
			continue
		}
		for _, tagID := range tx.TagIDs {
			if err := store.AssociateTag(ctx, tx.ID, tagID); err != nil {
				logger.Warn().Err(err).Str("transaction", tx.ID.String()).Str("tag", tagID.String()).Msg("Failed to tag transaction during import")
			}
		}
		record("transaction", tx.ID.String(), nil)
	}

	logger.Info().Int("imported", imported).Int("skipped", skipped).Str("file", filePath).Msg("Ledger imported")
	return imported, skipped, nil
}
