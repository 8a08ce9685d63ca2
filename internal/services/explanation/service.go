package explanation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/config"
	"invoice-reconciliation-backend/internal/models"
)

// Explanation is a natural-language account of why a match did or did not
// score well. It consumes the engine's score as input and never influences
// it.
type Explanation struct {
	Explanation string `json:"explanation"`
	Confidence  string `json:"confidence"`
}

// Service produces match explanations, via the LLM when enabled and via a
// deterministic fallback otherwise (or when the LLM call fails).
type Service struct {
	enabled bool
	model   string
	client  *openai.Client
	logger  *zap.Logger
}

func NewService(cfg config.AIConfig, logger *zap.Logger) *Service {
	s := &Service{
		enabled: cfg.Enabled && cfg.APIKey != "",
		model:   cfg.Model,
		logger:  logger,
	}
	if s.enabled {
		s.client = openai.NewClient(cfg.APIKey)
	}
	return s
}

func (s *Service) ExplainMatch(ctx context.Context, invoice *models.Invoice, tx *models.BankTransaction, score decimal.Decimal, vendorName string) *Explanation {
	if !s.enabled {
		return fallbackExplanation(invoice, tx, score, vendorName)
	}

	result, err := s.callLLM(ctx, invoice, tx, score, vendorName)
	if err != nil {
		s.logger.Warn("AI explanation failed, using fallback", zap.Error(err))
		return fallbackExplanation(invoice, tx, score, vendorName)
	}
	return result
}

func (s *Service) callLLM(ctx context.Context, invoice *models.Invoice, tx *models.BankTransaction, score decimal.Decimal, vendorName string) (*Explanation, error) {
	prompt := buildPrompt(invoice, tx, score, vendorName)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a financial reconciliation assistant. Return only valid JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	var result Explanation
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("malformed completion payload: %w", err)
	}
	if result.Explanation == "" {
		result.Explanation = "AI explanation unavailable"
	}
	if result.Confidence == "" {
		result.Confidence = "medium"
	}
	return &result, nil
}

func buildPrompt(invoice *models.Invoice, tx *models.BankTransaction, score decimal.Decimal, vendorName string) string {
	orNotSpecified := func(s string) string {
		if s == "" {
			return "Not specified"
		}
		return s
	}
	invoiceDate := "Not specified"
	if invoice.InvoiceDate != nil {
		invoiceDate = invoice.InvoiceDate.Format("2006-01-02")
	}

	return fmt.Sprintf(`You are analyzing a potential match between an invoice and a bank transaction.

Invoice:
- Amount: %s %s
- Date: %s
- Invoice Number: %s
- Vendor: %s
- Description: %s

Bank Transaction:
- Amount: %s %s
- Posted Date: %s
- Description: %s

Match Score: %s/100

Provide a concise explanation (2-6 sentences) of why this is or isn't a good match. Focus on:
1. Amount comparison
2. Date proximity
3. Any matching identifiers or descriptions
4. Overall confidence level

Return a JSON object with 'explanation' (string) and 'confidence' (string: 'high', 'medium', or 'low').
`,
		invoice.Amount.String(), invoice.Currency,
		invoiceDate,
		orNotSpecified(invoice.InvoiceNumber),
		orNotSpecified(vendorName),
		orNotSpecified(invoice.Description),
		tx.Amount.String(), tx.Currency,
		tx.PostedAt.Format("2006-01-02"),
		orNotSpecified(tx.Description),
		score.String(),
	)
}

// fallbackExplanation derives a deterministic explanation from the same
// signals the scorer weighs.
func fallbackExplanation(invoice *models.Invoice, tx *models.BankTransaction, score decimal.Decimal, vendorName string) *Explanation {
	var reasons []string
	confidence := "low"

	amountDiff := invoice.Amount.Sub(tx.Amount).Abs()
	amountPct := 100.0
	if invoice.Amount.IsPositive() {
		amountPct = amountDiff.Div(invoice.Amount).InexactFloat64() * 100
	}

	switch {
	case amountDiff.IsZero():
		reasons = append(reasons, "exact amount match")
		confidence = "high"
	case amountPct <= 1:
		reasons = append(reasons, fmt.Sprintf("amount match within 1%% (difference: %.2f%%)", amountPct))
		confidence = "high"
	case amountPct <= 5:
		reasons = append(reasons, fmt.Sprintf("amount match within 5%% (difference: %.2f%%)", amountPct))
		confidence = "medium"
	case amountPct <= 10:
		reasons = append(reasons, fmt.Sprintf("amount match within 10%% (difference: %.2f%%)", amountPct))
		confidence = "medium"
	default:
		reasons = append(reasons, fmt.Sprintf("significant amount difference (%.2f%%)", amountPct))
		confidence = "low"
	}

	if invoice.InvoiceDate != nil {
		daysDiff := int(math.Abs(truncateToDay(*invoice.InvoiceDate).Sub(truncateToDay(tx.PostedAt)).Hours() / 24))
		switch {
		case daysDiff == 0:
			reasons = append(reasons, "same date")
			if confidence != "high" {
				confidence = "medium"
			}
		case daysDiff <= 7:
			reasons = append(reasons, fmt.Sprintf("dates within %d days", daysDiff))
		default:
			reasons = append(reasons, fmt.Sprintf("dates differ by %d days", daysDiff))
		}
	}

	if strings.EqualFold(invoice.Currency, tx.Currency) {
		reasons = append(reasons, "same currency")
	} else {
		reasons = append(reasons, "different currencies")
		confidence = "low"
	}

	if vendorName != "" && tx.Description != "" &&
		strings.Contains(strings.ToLower(tx.Description), strings.ToLower(vendorName)) {
		reasons = append(reasons, "vendor name found in transaction description")
		if confidence != "high" {
			confidence = "medium"
		}
	}

	text := fmt.Sprintf("This match has a score of %s/100. ", score.String())
	if len(reasons) > 0 {
		text += "Key factors: " + strings.Join(reasons, ", ") + "."
	} else {
		text += "Limited matching factors identified."
	}

	return &Explanation{Explanation: text, Confidence: confidence}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
