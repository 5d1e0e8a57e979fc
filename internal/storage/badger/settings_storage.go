package badger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/tally/internal/models"
)

// baseCurrencyKey is the setting holding the base currency.
const baseCurrencyKey = "base_currency"

// setting is a single key/value user setting.
type setting struct {
	Key   string
	Value string
}

// tagLink associates a tag with a transaction.
type tagLink struct {
	TransactionID string `badgerhold:"index"`
	TagID         string
}

func tagLinkKey(transactionID, tagID uuid.UUID) string {
	return transactionID.String() + "\x00" + tagID.String()
}

// FindExchangeRate returns the stored rate for currency, or nil when none
// is stored.
func (s *Store) FindExchangeRate(_ context.Context, currency string) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	if err := s.db.Get(strings.ToUpper(currency), &rate); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get exchange rate %s: %w", currency, err)
	}
	return &rate, nil
}

// SaveExchangeRate inserts or replaces the rate of rate.Currency.
func (s *Store) SaveExchangeRate(_ context.Context, rate models.ExchangeRate) error {
	code := strings.ToUpper(strings.TrimSpace(rate.Currency))
	if code == "" {
		return fmt.Errorf("currency is required")
	}
	if rate.Rate.IsNegative() {
		return fmt.Errorf("rate for %s must not be negative", code)
	}
	rate.Currency = code
	rate.BaseCurrency = strings.ToUpper(rate.BaseCurrency)
	if err := s.db.Upsert(code, rate); err != nil {
		return fmt.Errorf("failed to save exchange rate %s: %w", code, err)
	}
	return nil
}

// BaseCurrency returns the stored base currency, or "" when unset.
func (s *Store) BaseCurrency(_ context.Context) (string, error) {
	var st setting
	if err := s.db.Get(baseCurrencyKey, &st); err != nil {
		if err == badgerhold.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get base currency: %w", err)
	}
	return st.Value, nil
}

// SetBaseCurrency stores the base currency.
func (s *Store) SetBaseCurrency(_ context.Context, currency string) error {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return fmt.Errorf("invalid currency code %q", currency)
	}
	if err := s.db.Upsert(baseCurrencyKey, setting{Key: baseCurrencyKey, Value: code}); err != nil {
		return fmt.Errorf("failed to set base currency: %w", err)
	}
	s.logger.Info().Str("currency", code).Msg("Base currency updated")
	return nil
}

// ListTags returns all tags ordered by their ordering key.
func (s *Store) ListTags(_ context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.db.Find(&tags, nil); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].OrderNum < tags[j].OrderNum
	})
	return tags, nil
}

// SaveTag inserts or replaces a tag.
func (s *Store) SaveTag(_ context.Context, tag models.Tag) error {
	if tag.ID == uuid.Nil {
		return fmt.Errorf("tag id is required")
	}
	if err := s.db.Upsert(tag.ID.String(), tag); err != nil {
		return fmt.Errorf("failed to save tag %s: %w", tag.ID, err)
	}
	return nil
}

// AssociateTag links a tag to a transaction. Linking twice is a no-op.
func (s *Store) AssociateTag(_ context.Context, transactionID, tagID uuid.UUID) error {
	link := tagLink{TransactionID: transactionID.String(), TagID: tagID.String()}
	if err := s.db.Upsert(tagLinkKey(transactionID, tagID), link); err != nil {
		return fmt.Errorf("failed to link tag %s to transaction %s: %w", tagID, transactionID, err)
	}
	return nil
}

// ListTagsForTransaction returns the tags linked to a transaction. Links to
// deleted tags are skipped.
func (s *Store) ListTagsForTransaction(_ context.Context, transactionID uuid.UUID) ([]models.Tag, error) {
	var links []tagLink
	query := badgerhold.Where("TransactionID").Eq(transactionID.String()).Index("TransactionID")
	if err := s.db.Find(&links, query); err != nil {
		return nil, fmt.Errorf("failed to list tag links for %s: %w", transactionID, err)
	}

	tags := make([]models.Tag, 0, len(links))
	for _, link := range links {
		var tag models.Tag
		if err := s.db.Get(link.TagID, &tag); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return nil, fmt.Errorf("failed to get tag %s: %w", link.TagID, err)
		}
		tags = append(tags, tag)
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].OrderNum < tags[j].OrderNum
	})
	return tags, nil
}
