package scoring

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/models"
)

// Scoring weights
const (
	AmountWeight   = 40.0
	DateWeight     = 30.0
	TextWeight     = 20.0
	CurrencyWeight = 10.0
	MaxScore       = 100.0
)

// Breakdown carries the four sub-scores of one invoice/transaction pair.
// Useful for explaining a match without re-deriving the arithmetic.
type Breakdown struct {
	Amount   float64
	Date     float64
	Text     float64
	Currency float64
}

// Total sums the sub-scores and caps at MaxScore, as a two-decimal value.
func (b Breakdown) Total() decimal.Decimal {
	total := b.Amount + b.Date + b.Text + b.Currency
	if total > MaxScore {
		total = MaxScore
	}
	return decimal.NewFromFloat(total).Round(2)
}

// Score rates how likely an invoice and a bank transaction refer to the same
// payment, on a 0-100 scale. Pure and deterministic: no I/O, no state, never
// fails. A nil vendor and missing optional fields simply contribute nothing.
func Score(invoice *models.Invoice, tx *models.BankTransaction, vendor *models.Vendor) decimal.Decimal {
	return ScoreDetailed(invoice, tx, vendor).Total()
}

// ScoreDetailed is Score with the per-component breakdown exposed.
func ScoreDetailed(invoice *models.Invoice, tx *models.BankTransaction, vendor *models.Vendor) Breakdown {
	return Breakdown{
		Amount:   scoreAmount(invoice.Amount, tx.Amount),
		Date:     scoreDateProximity(invoice.InvoiceDate, tx.PostedAt),
		Text:     scoreTextSimilarity(invoice, tx, vendor),
		Currency: scoreCurrency(invoice.Currency, tx.Currency),
	}
}

// scoreAmount: 0-40 points. Exact equality scores full marks; otherwise the
// percentage difference relative to the average of the two amounts is
// bucketed, decaying linearly past 10%.
func scoreAmount(invoiceAmount, txAmount decimal.Decimal) float64 {
	if invoiceAmount.Equal(txAmount) {
		return AmountWeight
	}

	avg := invoiceAmount.Add(txAmount).Div(decimal.NewFromInt(2)).Abs()
	if avg.IsZero() {
		return 0
	}

	diff := invoiceAmount.Sub(txAmount).Abs()
	pctDiff := diff.Div(avg).InexactFloat64()

	switch {
	case pctDiff <= 0.01:
		return 35
	case pctDiff <= 0.05:
		return 25
	case pctDiff <= 0.10:
		return 15
	default:
		return max(0, 15-(pctDiff-0.10)*50)
	}
}

// scoreDateProximity: 0-30 points, day granularity. An invoice without a
// date scores zero.
func scoreDateProximity(invoiceDate *time.Time, postedAt time.Time) float64 {
	if invoiceDate == nil {
		return 0
	}

	days := calendarDaysApart(*invoiceDate, postedAt)

	switch {
	case days == 0:
		return DateWeight
	case days == 1:
		return 25
	case days <= 3:
		return 20
	case days <= 7:
		return 10
	case days <= 30:
		return 5
	default:
		return max(0, 5-float64(days-30)*0.1)
	}
}

// scoreTextSimilarity: 0-20 points, additive. Vendor name in either
// description +15, shared description words + up to 10, invoice number in
// the transaction description +5, capped at the text weight.
func scoreTextSimilarity(invoice *models.Invoice, tx *models.BankTransaction, vendor *models.Vendor) float64 {
	score := 0.0

	invoiceDesc := strings.ToLower(invoice.Description)
	txDesc := strings.ToLower(tx.Description)

	if vendor != nil && vendor.Name != "" {
		vendorName := strings.ToLower(vendor.Name)
		if strings.Contains(txDesc, vendorName) || strings.Contains(invoiceDesc, vendorName) {
			score += 15
		}
	}

	if invoice.Description != "" && tx.Description != "" {
		invoiceWords := wordSet(invoiceDesc)
		txWords := wordSet(txDesc)

		common := 0
		for w := range invoiceWords {
			if txWords[w] {
				common++
			}
		}
		if common > 0 {
			ratio := float64(common) / max(float64(len(invoiceWords)), float64(len(txWords)))
			score += min(10, ratio*10)
		}
	}

	if invoice.InvoiceNumber != "" && tx.Description != "" {
		if strings.Contains(txDesc, strings.ToLower(invoice.InvoiceNumber)) {
			score += 5
		}
	}

	return min(score, TextWeight)
}

// scoreCurrency: 0-10 points for a case-insensitive currency code match.
func scoreCurrency(invoiceCurrency, txCurrency string) float64 {
	if strings.EqualFold(invoiceCurrency, txCurrency) {
		return CurrencyWeight
	}
	return 0
}

// calendarDaysApart compares calendar dates, ignoring the time of day.
func calendarDaysApart(a, b time.Time) int {
	aDay := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bDay := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)

	days := int(aDay.Sub(bDay).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}
