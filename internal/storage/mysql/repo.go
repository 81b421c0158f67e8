package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"croffers/internal/domain"
)

const errDuplicateEntry = 1062

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(v any) sql.NullString {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func ptrF64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

// notFound maps sql.ErrNoRows to the domain error.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

// Repo implements every repository port on one MySQL handle.
type Repo struct{ db *sqlx.DB }

func New(db *sql.DB) *Repo { return &Repo{db: sqlx.NewDb(db, "mysql")} }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// inTx runs fn in a transaction, rolling back on error.
func (r *Repo) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------
// USERS
// -----------------------------------------------------------------------------

func (r *Repo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.NamedExecContext(ctx, insertUserSQL, u)
	if isDuplicate(err) {
		return fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	return err
}

func (r *Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, selectUserSQL+" WHERE id = ?", id)
	return u, notFound(err)
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, selectUserSQL+" WHERE email = ?", strings.ToLower(email))
	return u, notFound(err)
}

// -----------------------------------------------------------------------------
// PAYMENTS
// -----------------------------------------------------------------------------

func (r *Repo) CreatePayment(ctx context.Context, p domain.Payment) error {
	_, err := r.db.NamedExecContext(ctx, insertPaymentSQL, p)
	if isDuplicate(err) {
		return fmt.Errorf("%w: booking already has a payment", domain.ErrConflict)
	}
	return err
}

func (r *Repo) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.GetContext(ctx, &p, "SELECT"+paymentColumns+" FROM payments WHERE id = ?", id)
	return p, notFound(err)
}

func (r *Repo) GetPaymentByBooking(ctx context.Context, bookingID string) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.GetContext(ctx, &p, "SELECT"+paymentColumns+" FROM payments WHERE booking_id = ?", bookingID)
	return p, notFound(err)
}

func (r *Repo) UpdatePaymentStatus(ctx context.Context, id string, st domain.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx, updatePaymentStatusSQL, string(st), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) ReopenPayment(ctx context.Context, p domain.Payment) error {
	res, err := r.db.NamedExecContext(ctx, reopenPaymentSQL, p)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: payment %s is not failed", domain.ErrConflict, p.ID)
	}
	return nil
}

// -----------------------------------------------------------------------------
// REVIEWS
// -----------------------------------------------------------------------------

func (r *Repo) CreateReview(ctx context.Context, rv domain.Review) error {
	_, err := r.db.ExecContext(ctx, insertReviewSQL,
		rv.ID,
		rv.ListingID,
		rv.BookingID,
		rv.TouristID,
		rv.Rating,
		valStr(rv.Title),
		valStr(rv.Text),
		rv.CreatedAt.UTC(),
	)
	if isDuplicate(err) {
		return domain.ErrAlreadyReviewed
	}
	return err
}

// ListReviews pages newest first on (created_at, id). One extra row is read
// to know whether a next page exists.
func (r *Repo) ListReviews(ctx context.Context, listingID string, pg domain.PageQuery) (domain.ReviewsPage, error) {
	var (
		out []domain.Review
		err error
	)
	if pg.Cursor != nil {
		at, id, derr := domain.DecodeCursor(*pg.Cursor)
		if derr != nil {
			return domain.ReviewsPage{}, derr
		}
		err = r.db.SelectContext(ctx, &out, listReviewsAfterSQL+reviewsOrderSQL, listingID, at, at, id, pg.Limit+1)
	} else {
		err = r.db.SelectContext(ctx, &out, listReviewsSQL+reviewsOrderSQL, listingID, pg.Limit+1)
	}
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	page := domain.ReviewsPage{Items: out}
	if len(out) > pg.Limit {
		page.Items = out[:pg.Limit]
		last := page.Items[len(page.Items)-1]
		c := domain.EncodeCursor(last.CreatedAt, last.ID)
		page.NextCursor = &c
	}
	return page, nil
}
