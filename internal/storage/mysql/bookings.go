package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"croffers/internal/domain"
)

// CreateBooking locks the listing row so concurrent bookings for the same
// listing serialize on the capacity check.
func (r *Repo) CreateBooking(ctx context.Context, b domain.Booking, capacity int) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var locked int
		if err := tx.GetContext(ctx, &locked, lockListingSQL, b.ListingID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrUnavailable
			}
			return err
		}
		if locked < capacity {
			capacity = locked
		}

		var booked int
		if err := tx.GetContext(ctx, &booked, bookedQuantitySQL, b.ListingID, b.CreatedAt, b.EndDate, b.StartDate); err != nil {
			return err
		}
		if booked+b.Quantity > capacity {
			return domain.ErrUnavailable
		}

		_, err := tx.NamedExecContext(ctx, insertBookingSQL, b)
		return err
	})
}

func (r *Repo) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.GetContext(ctx, &b, "SELECT"+bookingColumns+" FROM bookings WHERE id = ?", id)
	return b, notFound(err)
}

func (r *Repo) TransitionBooking(ctx context.Context, id string, from []domain.BookingStatus, to domain.BookingStatus) error {
	query, args, err := sqlx.In(transitionBookingSQL, string(to), time.Now().UTC(), id, statusStrings(from))
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.GetBooking(ctx, id); err != nil {
		return err
	}
	return domain.ErrConflict
}

func (r *Repo) ExpirePending(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	return r.sweep(ctx, selectExpiredSQL, now, domain.BookingExpired)
}

func (r *Repo) CompleteFinished(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	return r.sweep(ctx, selectFinishedSQL, now, domain.BookingCompleted)
}

// sweep moves every booking matched by selectSQL to `to` in one transaction
// and returns them with the new status.
func (r *Repo) sweep(ctx context.Context, selectSQL string, now time.Time, to domain.BookingStatus) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &out, selectSQL, now.UTC()); err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}
		ids := make([]string, len(out))
		for i := range out {
			ids[i] = out[i].ID
			out[i].Status = to
			out[i].UpdatedAt = now
		}
		query, args, err := sqlx.In(sweepBookingsSQL, string(to), now.UTC(), ids)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) ListByTourist(ctx context.Context, touristID string) ([]domain.Booking, error) {
	out := []domain.Booking{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT"+bookingColumns+" FROM bookings WHERE tourist_id = ? ORDER BY created_at DESC, id", touristID)
	return out, err
}

func (r *Repo) ListByListing(ctx context.Context, listingID string) ([]domain.Booking, error) {
	out := []domain.Booking{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT"+bookingColumns+" FROM bookings WHERE listing_id = ? ORDER BY start_date, id", listingID)
	return out, err
}

func statusStrings(in []domain.BookingStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
