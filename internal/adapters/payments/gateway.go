// Package payments is the card processor adapter. It speaks the common
// payment-intent REST dialect (create intent, read intent, refund).
package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"croffers/internal/adapters/remote"
	"croffers/internal/domain"
)

type Gateway struct {
	rc *remote.Client
}

func New(base, key string) (*Gateway, error) {
	rc, err := remote.New("payments", base, key, 20)
	if err != nil {
		return nil, err
	}
	return &Gateway{rc: rc}, nil
}

func (g *Gateway) Name() string { return "card" }

type intentDTO struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"` // minor units
	Currency     string `json:"currency"`
}

func (d intentDTO) toDomain() domain.Intent {
	return domain.Intent{
		Ref:          d.ID,
		ClientSecret: d.ClientSecret,
		Status:       d.Status,
		Amount:       decimal.New(d.Amount, -2),
		Currency:     strings.ToUpper(d.Currency),
	}
}

func (g *Gateway) CreateIntent(ctx context.Context, idempotencyKey string, amount decimal.Decimal, currency string) (domain.Intent, error) {
	body := map[string]any{
		"amount":   toMinor(amount),
		"currency": strings.ToLower(currency),
		"metadata": map[string]string{"booking_id": idempotencyKey},
	}
	var out intentDTO
	if err := g.rc.Post(ctx, "/payment_intents", body, idempotencyKey, &out); err != nil {
		return domain.Intent{}, fmt.Errorf("create intent: %w", err)
	}
	return out.toDomain(), nil
}

func (g *Gateway) GetIntent(ctx context.Context, ref string) (domain.Intent, error) {
	var out intentDTO
	if err := g.rc.Get(ctx, "/payment_intents/"+url.PathEscape(ref), &out); err != nil {
		return domain.Intent{}, fmt.Errorf("get intent: %w", err)
	}
	return out.toDomain(), nil
}

func (g *Gateway) Refund(ctx context.Context, ref string) error {
	body := map[string]any{"payment_intent": ref}
	if err := g.rc.Post(ctx, "/refunds", body, "refund-"+ref, nil); err != nil {
		return fmt.Errorf("refund: %w", err)
	}
	return nil
}

// toMinor converts 12.345 EUR to 1235 cents (half away from zero).
func toMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
