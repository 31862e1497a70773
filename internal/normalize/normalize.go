// Package normalize turns raw bank records into the cleaned, dedupable
// form the budgeting apps consume.
package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleanab-dev/cleanab/internal/cleaner"
	"github.com/cleanab-dev/cleanab/internal/model"
)

// purposeRecovery matches credit-card style purposes where the payee
// name runs into a 3-letter currency code, 3+ spaces of padding and the
// printed amount. Group 1 is the payee, groups 2-4 the remainder.
var purposeRecovery = regexp.MustCompile(`^(.+?)([A-Z]{3})\s{3,}([0-9,]+)(.*)$`)

const maxMemoRunes = 200

var milli = decimal.NewFromInt(1000)

// Transaction normalizes one raw record. A nil result means the record
// is skipped: future-dated, not yet booked, or missing both dates.
func Transaction(raw model.RawTransaction, acct model.AccountConfig, fc *cleaner.FieldCleaner, today time.Time) *model.CleanedTransaction {
	entryDate := raw.EntryDate
	if entryDate.IsZero() {
		entryDate = raw.Date
	}
	if entryDate.IsZero() {
		return nil
	}
	if dateOnly(entryDate).After(dateOnly(today)) {
		return nil
	}
	date := entryDate.Format("2006-01-02")

	// Half-to-even, pinned by tests: the id below embeds the amount, so
	// the rounding mode must never change between runs.
	amount := raw.Amount.Mul(milli).RoundBank(0).IntPart()

	// The dedup id hashes the raw field values, before repair and
	// cleaning, so re-imports stay idempotent across rule changes.
	importID := DedupID(date, raw.ApplicantName, raw.Purpose, amount)

	applicant := raw.ApplicantName
	purpose := raw.Purpose
	if applicant == "" && purpose != "" {
		if m := purposeRecovery.FindStringSubmatch(purpose); m != nil {
			applicant = m[1]
			purpose = strings.Join(m[2:], " ")
		}
	}

	cleaned := fc.Clean(map[model.Field]string{
		model.FieldApplicantName: applicant,
		model.FieldPurpose:       purpose,
	})

	memo := truncate(cleaned[model.FieldPurpose], maxMemoRunes)

	cleared := "uncleared"
	if acct.DefaultCleared {
		cleared = "cleared"
	}

	return &model.CleanedTransaction{
		AccountID: acct.AppID,
		Date:      date,
		Amount:    amount,
		PayeeName: cleaned[model.FieldApplicantName],
		Memo:      memo,
		ImportID:  importID,
		Cleared:   cleared,
		Approved:  acct.DefaultApproved,
	}
}

// DedupID is the stable content hash downstream importers use to
// recognize an already-imported transaction. Delimiter-free md5 over
// date, applicant, purpose and amount, matching ids from earlier runs.
func DedupID(date, applicant, purpose string, amount int64) string {
	sum := md5.Sum([]byte(date + applicant + purpose + strconv.FormatInt(amount, 10)))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
