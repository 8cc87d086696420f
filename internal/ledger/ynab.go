package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const ynabBaseURL = "https://api.ynab.com/v1"

// Deduction rates applied to every receipt: income tax reserve, physician
// pension fund and chamber contribution. The remainder stays assignable.
var (
	rateTax     = decimal.RequireFromString("0.40")
	ratePension = decimal.RequireFromString("0.186")
	rateChamber = decimal.RequireFromString("0.0045")
)

// YNABConfig carries the budget coordinates. All IDs are per-budget
// values supplied via configuration.
type YNABConfig struct {
	APIToken          string
	BudgetID          string
	AccountID         string
	TaxCategoryID     string
	PensionCategoryID string
	ChamberCategoryID string
	ReadyCategoryID   string
}

// YNABProvider posts payments as split transactions into a YNAB budget.
type YNABProvider struct {
	client *http.Client
	logger *slog.Logger
	cfg    YNABConfig
}

func NewYNABProvider(logger *slog.Logger, cfg YNABConfig) *YNABProvider {
	return &YNABProvider{
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
		cfg:    cfg,
	}
}

// APIError is a non-2xx response from the YNAB API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ynab api error: status %d: %s", e.StatusCode, e.Body)
}

// Split is the deduction breakdown of a gross amount.
type Split struct {
	Gross   decimal.Decimal
	Tax     decimal.Decimal
	Pension decimal.Decimal
	Chamber decimal.Decimal
	Ready   decimal.Decimal
}

// ComputeSplit divides a gross receipt into the deduction categories.
// Each deduction is rounded to cents; the assignable remainder absorbs
// the rounding difference so the parts always sum to the gross amount.
func ComputeSplit(gross decimal.Decimal) Split {
	tax := gross.Mul(rateTax).Round(2)
	pension := gross.Mul(ratePension).Round(2)
	chamber := gross.Mul(rateChamber).Round(2)
	ready := gross.Round(2).Sub(tax).Sub(pension).Sub(chamber)

	return Split{
		Gross:   gross.Round(2),
		Tax:     tax,
		Pension: pension,
		Chamber: chamber,
		Ready:   ready,
	}
}

// Memo builds the transaction memo from the invoice references.
func Memo(references []string) string {
	var clean []string
	for _, r := range references {
		if r != "" {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return "Leichenschau"
	}
	return "Leichenschau " + strings.Join(clean, " + ")
}

// milliunits converts EUR to the YNAB integer representation.
func milliunits(d decimal.Decimal) int64 {
	return d.Round(2).Mul(decimal.NewFromInt(1000)).IntPart()
}

type ynabSubTransaction struct {
	Amount     int64  `json:"amount"`
	CategoryID string `json:"category_id"`
}

type ynabTransaction struct {
	AccountID       string               `json:"account_id"`
	Date            string               `json:"date"`
	Amount          int64                `json:"amount"`
	PayeeName       string               `json:"payee_name"`
	Memo            string               `json:"memo"`
	Cleared         string               `json:"cleared"`
	Approved        bool                 `json:"approved"`
	SubTransactions []ynabSubTransaction `json:"subtransactions"`
}

// PostTransaction books the payment as a cleared split transaction.
func (p *YNABProvider) PostTransaction(ctx context.Context, tx Transaction) error {
	split := ComputeSplit(tx.Amount)

	payload := map[string]ynabTransaction{
		"transaction": {
			AccountID: p.cfg.AccountID,
			Date:      tx.Date,
			Amount:    milliunits(split.Gross),
			PayeeName: tx.Payee,
			Memo:      Memo(tx.References),
			Cleared:   "cleared",
			Approved:  true,
			SubTransactions: []ynabSubTransaction{
				{Amount: milliunits(split.Tax), CategoryID: p.cfg.TaxCategoryID},
				{Amount: milliunits(split.Pension), CategoryID: p.cfg.PensionCategoryID},
				{Amount: milliunits(split.Chamber), CategoryID: p.cfg.ChamberCategoryID},
				{Amount: milliunits(split.Ready), CategoryID: p.cfg.ReadyCategoryID},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode ynab transaction: %w", err)
	}

	url := fmt.Sprintf("%s/budgets/%s/transactions", ynabBaseURL, p.cfg.BudgetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ynab request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	p.logger.Info("ledger transaction posted",
		"payee", tx.Payee,
		"amount", split.Gross.StringFixed(2),
		"memo", Memo(tx.References),
	)
	return nil
}
