package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"croffers/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs struct-tag validation and folds the failures into a
// single ErrValidation so the HTTP layer can map it to 400.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		parts := make([]string, 0, len(ves))
		for _, fe := range ves {
			parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(parts, "; "))
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

// publish emits ev without letting a publisher failure fail the caller.
func publish(ctx context.Context, pub domain.EventPublisher, ev domain.DomainEvent) {
	if pub == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn().Err(err).Str("type", string(ev.Type)).Str("aggregate_id", ev.AggregateID).Msg("publish event failed")
	}
}

// day truncates t to midnight UTC.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
