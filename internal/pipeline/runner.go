// Package pipeline orchestrates a run: retrieve records per account,
// normalize them, and deliver the results to the configured apps.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/cleanab-dev/cleanab/internal/apps"
	"github.com/cleanab-dev/cleanab/internal/banking"
	"github.com/cleanab-dev/cleanab/internal/cleaner"
	"github.com/cleanab-dev/cleanab/internal/config"
	"github.com/cleanab-dev/cleanab/internal/model"
	"github.com/cleanab-dev/cleanab/internal/normalize"
	"github.com/cleanab-dev/cleanab/internal/session"
	"github.com/cleanab-dev/cleanab/internal/store"
)

// Options configures a Runner.
type Options struct {
	Config   *config.Config
	Cleaner  *cleaner.FieldCleaner
	Sessions *session.Manager
	Store    *store.Store
	Apps     []apps.App
	Log      *log.Logger

	DryRun bool
	// Test implies DryRun and reads raw records from the local cache
	// instead of dialing the bank.
	Test bool
	// Save writes cleaned records to the local cache.
	Save bool
	// Today overrides the current date; zero means time.Now().
	Today time.Time
}

// Summary is the outcome of one run.
type Summary struct {
	Created    int
	Duplicates int
}

// Runner executes the acquisition and normalization pipeline.
type Runner struct {
	opts  Options
	today time.Time
}

// NewRunner creates a Runner from options.
func NewRunner(opts Options) *Runner {
	if opts.Test {
		opts.DryRun = true
	}
	today := opts.Today
	if today.IsZero() {
		today = time.Now()
	}
	return &Runner{opts: opts, today: today}
}

// Run processes every configured account and dispatches the results.
// Per-account failures are logged and skipped; the run continues.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	earliest := r.opts.Config.Timespan.Earliest(r.today)
	r.opts.Log.Info("Checking back", "until", earliest.Format("2006-01-02"))

	cleanedPerAccount := make([][]model.CleanedTransaction, len(r.opts.Config.Accounts))
	workers := r.opts.Config.Cleanab.Concurrency
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, acct := range r.opts.Config.Accounts {
		wg.Add(1)
		go func(i int, acct model.AccountConfig) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			cleanedPerAccount[i] = r.processAccount(acct, earliest)
		}(i, acct)
	}
	wg.Wait()

	var cleaned []model.CleanedTransaction
	for _, recs := range cleanedPerAccount {
		cleaned = append(cleaned, recs...)
	}
	if len(cleaned) == 0 {
		r.opts.Log.Warn("No transactions found")
		return Summary{}, nil
	}
	r.opts.Log.Info("Got new transactions", "count", len(cleaned))

	return r.dispatch(ctx, cleaned)
}

// processAccount returns the cleaned records for one account, or
// nothing when retrieval or normalization fails for it.
func (r *Runner) processAccount(acct model.AccountConfig, earliest time.Time) []model.CleanedTransaction {
	r.opts.Log.Info("Processing", "account", acct.String())

	var cleaned []model.CleanedTransaction
	if acct.Type == model.TypeHolding {
		cleaned = r.processHoldings(acct)
	} else {
		raw := r.rawTransactions(acct, earliest)
		for _, record := range raw {
			tx := normalize.Transaction(record, acct, r.opts.Cleaner, r.today)
			if tx == nil {
				continue
			}
			cleaned = append(cleaned, *tx)
		}
	}

	if r.opts.Save && len(cleaned) > 0 {
		if err := r.opts.Store.PutCleaned(acct.IBAN, cleaned); err != nil {
			r.opts.Log.Error("Saving cleaned records failed", "iban", acct.IBAN, "err", err)
		}
	}
	return cleaned
}

// rawTransactions fetches (or, in test mode, replays) the account's raw
// records.
func (r *Runner) rawTransactions(acct model.AccountConfig, earliest time.Time) []model.RawTransaction {
	if r.opts.Test {
		records, ok, err := r.opts.Store.GetRaw(acct.IBAN)
		if err != nil {
			r.opts.Log.Error("Reading raw cache failed", "iban", acct.IBAN, "err", err)
			return nil
		}
		if ok {
			r.opts.Log.Debug("Using cached raw records", "iban", acct.IBAN, "count", len(records))
			return records
		}
	}

	sess, sepaAcct, ok := r.lookup(acct)
	if !ok {
		return nil
	}
	records := r.opts.Sessions.Transactions(sess, sepaAcct, earliest, r.today)

	if err := r.opts.Store.PutRaw(acct.IBAN, records); err != nil {
		r.opts.Log.Error("Caching raw records failed", "iban", acct.IBAN, "err", err)
	}
	return records
}

// processHoldings compares the account's current total value with the
// one recorded last run and emits an adjustment transaction when the
// delta reaches the configured minimum.
func (r *Runner) processHoldings(acct model.AccountConfig) []model.CleanedTransaction {
	sess, sepaAcct, ok := r.lookup(acct)
	if !ok {
		return nil
	}
	holdings := r.opts.Sessions.Holdings(sess, sepaAcct)
	if len(holdings) == 0 {
		return nil
	}

	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.TotalValue)
	}

	last, known, err := r.opts.Store.LastHoldingValue(acct.IBAN)
	if err != nil {
		r.opts.Log.Error("Reading last holding value failed", "iban", acct.IBAN, "err", err)
		return nil
	}
	if err := r.opts.Store.PutHoldingValue(acct.IBAN, total); err != nil {
		r.opts.Log.Error("Recording holding value failed", "iban", acct.IBAN, "err", err)
	}
	if !known {
		r.opts.Log.Info("Recorded initial holding value", "iban", acct.IBAN, "total", total.String())
		return nil
	}

	delta := total.Sub(last)
	if delta.Abs().LessThan(r.opts.Config.Cleanab.HoldingsDelta()) {
		r.opts.Log.Debug("Holdings delta below minimum", "iban", acct.IBAN, "delta", delta.String())
		return nil
	}

	date := r.today.Format("2006-01-02")
	amount := delta.Mul(decimal.NewFromInt(1000)).RoundBank(0).IntPart()
	memo := "Portfolio value " + last.String() + " -> " + total.String()
	cleared := "uncleared"
	if acct.DefaultCleared {
		cleared = "cleared"
	}
	return []model.CleanedTransaction{{
		AccountID: acct.AppID,
		Date:      date,
		Amount:    amount,
		PayeeName: "Holdings adjustment",
		Memo:      memo,
		ImportID:  normalize.DedupID(date, "Holdings adjustment", memo, amount),
		Cleared:   cleared,
		Approved:  acct.DefaultApproved,
	}}
}

// lookup acquires the account's session and resolves its SEPA account.
func (r *Runner) lookup(acct model.AccountConfig) (*session.Session, banking.SEPAAccount, bool) {
	sess, err := r.opts.Sessions.Acquire(acct.Credential)
	if err != nil {
		r.opts.Log.Error("Acquiring session failed", "account", acct.String(), "err", err)
		return nil, banking.SEPAAccount{}, false
	}
	sepaAcct, found := sess.FindAccount(acct.IBAN)
	if !found {
		r.opts.Log.Error("Account not found at bank", "iban", acct.IBAN)
		return nil, banking.SEPAAccount{}, false
	}
	return sess, sepaAcct, true
}

// dispatch augments the cleaned records per app and imports them in
// batches. A failing app is logged; the others still run.
func (r *Runner) dispatch(ctx context.Context, cleaned []model.CleanedTransaction) (Summary, error) {
	var summary Summary
	for _, app := range r.opts.Apps {
		augmented := make([]map[string]any, 0, len(cleaned))
		for _, tx := range cleaned {
			acct, ok := r.accountFor(tx.AccountID)
			if !ok {
				continue
			}
			augmented = append(augmented, app.Augment(tx, acct))
		}

		if r.opts.DryRun {
			r.opts.Log.Info("Dry-run, not creating transactions", "app", app.Name())
			payload, err := app.Intermediary(augmented)
			if err != nil {
				r.opts.Log.Error("Rendering intermediary failed", "app", app.Name(), "err", err)
				continue
			}
			r.opts.Log.Debug("Intermediary", "app", app.Name(), "payload", payload)
			continue
		}

		r.opts.Log.Info("Creating transactions", "app", app.Name())
		created, duplicates, err := app.Create(ctx, augmented)
		if err != nil {
			r.opts.Log.Error("Creating transactions failed", "app", app.Name(), "err", err)
		}
		r.opts.Log.Info("Import finished", "app", app.Name(), "created", created, "duplicates", duplicates)
		summary.Created += created
		summary.Duplicates += duplicates
	}
	return summary, nil
}

// accountFor maps a budgeting-app account id back to its configuration.
func (r *Runner) accountFor(appID string) (model.AccountConfig, bool) {
	for _, acct := range r.opts.Config.Accounts {
		if acct.AppID == appID {
			return acct, true
		}
	}
	return model.AccountConfig{}, false
}
