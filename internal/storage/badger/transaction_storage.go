package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/tally/internal/interfaces"
)

// storedTransaction is the persisted form of a transaction record. The
// timestamp and due date are mirrored as unix milliseconds so range queries
// compare plain integers.
type storedTransaction struct {
	Record       interfaces.TransactionRecord
	HasDateTime  bool
	DateTimeUnix int64 `badgerhold:"index"`
	HasDueDate   bool
	DueDateUnix  int64
}

func newStoredTransaction(rec interfaces.TransactionRecord) storedTransaction {
	st := storedTransaction{Record: rec}
	if rec.DateTime != nil {
		st.HasDateTime = true
		st.DateTimeUnix = rec.DateTime.UnixMilli()
	}
	if rec.DueDate != nil {
		st.HasDueDate = true
		st.DueDateUnix = rec.DueDate.UnixMilli()
	}
	return st
}

func unwrapTransactions(stored []storedTransaction) []interfaces.TransactionRecord {
	out := make([]interfaces.TransactionRecord, len(stored))
	for i := range stored {
		out[i] = stored[i].Record
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DateTime, out[j].DateTime
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return out
}

// ListTransactions returns every stored transaction, most recent first,
// with planned transactions last.
func (s *Store) ListTransactions(_ context.Context) ([]interfaces.TransactionRecord, error) {
	var stored []storedTransaction
	if err := s.db.Find(&stored, nil); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return unwrapTransactions(stored), nil
}

// ListTransactionsInRange returns paid transactions whose timestamp or due
// date lies in [start, end], most recent first.
func (s *Store) ListTransactionsInRange(_ context.Context, start, end time.Time) ([]interfaces.TransactionRecord, error) {
	var stored []storedTransaction
	from, to := start.UnixMilli(), end.UnixMilli()
	query := badgerhold.Where("HasDateTime").Eq(true).
		And("DateTimeUnix").Ge(from).
		And("DateTimeUnix").Le(to).
		Or(badgerhold.Where("HasDateTime").Eq(true).
			And("HasDueDate").Eq(true).
			And("DueDateUnix").Ge(from).
			And("DueDateUnix").Le(to))
	if err := s.db.Find(&stored, query); err != nil {
		return nil, fmt.Errorf("failed to list transactions in range: %w", err)
	}
	return unwrapTransactions(stored), nil
}

// SaveTransaction inserts or replaces a transaction record.
func (s *Store) SaveTransaction(_ context.Context, rec interfaces.TransactionRecord) error {
	if rec.ID == uuid.Nil {
		return fmt.Errorf("transaction id is required")
	}
	if err := s.db.Upsert(rec.ID.String(), newStoredTransaction(rec)); err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteTransaction removes a transaction and its tag links. Deleting a
// missing transaction is not an error.
func (s *Store) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	if err := s.db.Delete(id.String(), storedTransaction{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	if err := s.db.DeleteMatching(tagLink{}, badgerhold.Where("TransactionID").Eq(id.String())); err != nil {
		return fmt.Errorf("failed to delete tag links for %s: %w", id, err)
	}
	return nil
}
