package models

import (
	"fmt"

	"github.com/google/uuid"
)

// DataIntegrityError reports a stored transaction whose account could not
// be resolved. The affected transaction is excluded from aggregation.
type DataIntegrityError struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	AccountID     uuid.UUID `json:"account_id"`
	Field         string    `json:"field"`
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("transaction %s: %s %s not found", e.TransactionID, e.Field, e.AccountID)
}
