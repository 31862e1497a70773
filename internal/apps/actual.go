package apps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/cleanab-dev/cleanab/internal/model"
)

// batchSize is the import chunk size the Actual API expects.
const batchSize = 100

// maxPayeeRunes bounds the payee name handed to Actual.
const maxPayeeRunes = 50

// ActualConfig configures one Actual Budget server connection.
type ActualConfig struct {
	APIURL             string `yaml:"actual_api_url"`
	APIKey             string `yaml:"actual_api_key"`
	SyncID             string `yaml:"actual_sync_id"`
	AccountID          string `yaml:"actual_account_id"`
	EncryptionPassword string `yaml:"actual_encryption_password"`
}

// Actual imports transactions into an Actual Budget server.
type Actual struct {
	cfg    ActualConfig
	client *http.Client
	log    *log.Logger
}

// NewActualFromConfig is the registry Factory for Actual.
func NewActualFromConfig(node *yaml.Node, logger *log.Logger) (App, error) {
	var cfg ActualConfig
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("actual config: %w", err)
	}
	return NewActual(cfg, logger)
}

// NewActual validates the config and creates the connection.
func NewActual(cfg ActualConfig, logger *log.Logger) (*Actual, error) {
	if cfg.APIURL == "" || cfg.APIKey == "" || cfg.SyncID == "" || cfg.AccountID == "" {
		return nil, fmt.Errorf("actual config: actual_api_url, actual_api_key, actual_sync_id and actual_account_id are required")
	}
	return &Actual{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    logger,
	}, nil
}

// Name implements App.
func (a *Actual) Name() string { return "actual" }

// Augment shapes a cleaned transaction into Actual's import format.
// Actual counts in centi-units, the pipeline in milli-units.
func (a *Actual) Augment(tx model.CleanedTransaction, acct model.AccountConfig) map[string]any {
	payee := tx.PayeeName
	if runes := []rune(payee); len(runes) > maxPayeeRunes {
		payee = string(runes[:maxPayeeRunes])
	}
	if payee == "" {
		payee = "Unnamed"
	}

	return map[string]any{
		"account":        a.cfg.AccountID,
		"date":           tx.Date,
		"payee_name":     payee,
		"imported_payee": payee,
		"notes":          tx.Memo,
		"amount":         tx.Amount / 10,
		"imported_id":    tx.ImportID,
	}
}

// importReport is the per-batch response from the import endpoint.
type importReport struct {
	Added   []string `json:"added"`
	Updated []string `json:"updated"`
}

// Create imports the transactions in batches. On a failed batch it
// returns the counts accumulated so far; retrying re-imports whole
// batches, which the dedup ids make idempotent.
func (a *Actual) Create(ctx context.Context, txns []map[string]any) (int, int, error) {
	url := fmt.Sprintf("%s/budgets/%s/accounts/%s/transactions/import",
		strings.TrimRight(a.cfg.APIURL, "/"), a.cfg.SyncID, a.cfg.AccountID)

	var created, duplicates int
	for i := 0; i < len(txns); i += batchSize {
		end := i + batchSize
		if end > len(txns) {
			end = len(txns)
		}

		report, err := a.importBatch(ctx, url, txns[i:end])
		if err != nil {
			return created, duplicates, fmt.Errorf("importing batch starting at %d: %w", i, err)
		}
		a.log.Info("Received import report", "added", len(report.Added), "updated", len(report.Updated))
		created += len(report.Added)
		duplicates += len(report.Updated)
	}
	return created, duplicates, nil
}

func (a *Actual) importBatch(ctx context.Context, url string, batch []map[string]any) (*importReport, error) {
	body, err := json.Marshal(map[string]any{"transactions": batch})
	if err != nil {
		return nil, fmt.Errorf("marshaling transactions: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", a.cfg.APIKey)
	if a.cfg.EncryptionPassword != "" {
		req.Header.Set("budget-encryption-password", a.cfg.EncryptionPassword)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg bytes.Buffer
		_, _ = msg.ReadFrom(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(msg.String()))
	}

	var report importReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decoding import report: %w", err)
	}
	return &report, nil
}

// Intermediary implements App.
func (a *Actual) Intermediary(txns []map[string]any) (string, error) {
	data, err := json.MarshalIndent(txns, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
