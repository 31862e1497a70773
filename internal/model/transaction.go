package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawTransaction is a transaction as delivered by the bank, before any
// cleanup. EntryDate is the bank's settlement date and may be zero for
// entries the bank has not booked yet; Date is the nominal date.
type RawTransaction struct {
	Date          time.Time       `json:"date"`
	EntryDate     time.Time       `json:"entry_date,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	ApplicantName string          `json:"applicant_name,omitempty"`
	Purpose       string          `json:"purpose,omitempty"`
}

// Holding is a securities-account position snapshot.
type Holding struct {
	TotalValue decimal.Decimal `json:"total_value"`
}

// CleanedTransaction is the normalized form handed to budgeting apps.
// Amount is an integer count of milli-units (1/1000 of the major unit),
// matching the precision budgeting backends expect.
type CleanedTransaction struct {
	AccountID string `json:"account_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	Amount    int64  `json:"amount"`
	PayeeName string `json:"payee_name"`
	Memo      string `json:"memo"`
	ImportID  string `json:"import_id"`
	Cleared   string `json:"cleared"` // "cleared" or "uncleared"
	Approved  bool   `json:"approved"`
}
