package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"croffers/internal/domain"
)

type listingRow struct {
	ID          string          `db:"id"`
	SupplierID  string          `db:"supplier_id"`
	Kind        string          `db:"kind"`
	Title       string          `db:"title"`
	Description sql.NullString  `db:"description"`
	City        string          `db:"city"`
	Country     string          `db:"country"`
	Lat         sql.NullFloat64 `db:"lat"`
	Lon         sql.NullFloat64 `db:"lon"`
	Price       decimal.Decimal `db:"price"`
	Currency    string          `db:"currency"`
	Capacity    int             `db:"capacity"`
	Amenities   sql.NullString  `db:"amenities"`
	Images      sql.NullString  `db:"images"`
	AvgRating   sql.NullFloat64 `db:"avg_rating"`
	ReviewCount int             `db:"review_count"`
	Active      bool            `db:"active"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func toListingRow(l domain.Listing) listingRow {
	row := listingRow{
		ID:          l.ID,
		SupplierID:  l.SupplierID,
		Kind:        string(l.Kind),
		Title:       l.Title,
		Description: sql.NullString{String: l.Description, Valid: l.Description != ""},
		City:        l.City,
		Country:     l.Country,
		Price:       l.Price,
		Currency:    l.Currency,
		Capacity:    l.Capacity,
		Amenities:   valJSON(l.Amenities),
		Images:      valJSON(l.Images),
		Active:      l.Active,
		CreatedAt:   l.CreatedAt.UTC(),
		UpdatedAt:   l.UpdatedAt.UTC(),
	}
	if l.Coords != nil {
		row.Lat = sql.NullFloat64{Float64: l.Coords.Lat, Valid: true}
		row.Lon = sql.NullFloat64{Float64: l.Coords.Lon, Valid: true}
	}
	return row
}

func (row listingRow) toDomain() domain.Listing {
	l := domain.Listing{
		ID:          row.ID,
		SupplierID:  row.SupplierID,
		Kind:        domain.ListingKind(row.Kind),
		Title:       row.Title,
		Description: row.Description.String,
		City:        row.City,
		Country:     row.Country,
		Price:       row.Price,
		Currency:    row.Currency,
		Capacity:    row.Capacity,
		AvgRating:   ptrF64(row.AvgRating),
		ReviewCount: row.ReviewCount,
		Active:      row.Active,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.Lat.Valid && row.Lon.Valid {
		l.Coords = &domain.Coords{Lat: row.Lat.Float64, Lon: row.Lon.Float64}
	}
	if row.Amenities.Valid {
		_ = json.Unmarshal([]byte(row.Amenities.String), &l.Amenities)
	}
	if row.Images.Valid {
		_ = json.Unmarshal([]byte(row.Images.String), &l.Images)
	}
	return l
}

func (r *Repo) CreateListing(ctx context.Context, l domain.Listing) error {
	_, err := r.db.NamedExecContext(ctx, insertListingSQL, toListingRow(l))
	return err
}

func (r *Repo) UpdateListing(ctx context.Context, l domain.Listing) error {
	res, err := r.db.NamedExecContext(ctx, updateListingSQL, toListingRow(l))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for unchanged rows too; confirm existence.
		if _, err := r.GetListing(ctx, l.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	var row listingRow
	if err := r.db.GetContext(ctx, &row, "SELECT"+listingColumns+" FROM listings l WHERE l.id = ?", id); err != nil {
		return domain.Listing{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (r *Repo) ListBySupplier(ctx context.Context, supplierID string) ([]domain.Listing, error) {
	var rows []listingRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT"+listingColumns+" FROM listings l WHERE l.supplier_id = ? ORDER BY l.created_at DESC, l.id", supplierID)
	if err != nil {
		return nil, err
	}
	return listingsFromRows(rows), nil
}

func (r *Repo) RecalcRating(ctx context.Context, listingID string) error {
	_, err := r.db.ExecContext(ctx, recalcRatingSQL, listingID, listingID)
	return err
}

var listingOrder = map[domain.ListingSort]string{
	domain.SortPriceAsc:  "l.price ASC, l.id",
	domain.SortPriceDesc: "l.price DESC, l.id",
	domain.SortRating:    "l.avg_rating IS NULL, l.avg_rating DESC, l.review_count DESC, l.id",
	domain.SortNewest:    "l.created_at DESC, l.id",
}

// SearchListings builds the WHERE clause from the non-nil filters.
func (r *Repo) SearchListings(ctx context.Context, q domain.ListingQuery) ([]domain.Listing, error) {
	where := []string{"l.active = 1"}
	var args []any

	if q.Kind != nil {
		where = append(where, "l.kind = ?")
		args = append(args, string(*q.Kind))
	}
	if q.City != nil {
		where = append(where, "l.city = ?")
		args = append(args, *q.City)
	}
	if q.Country != nil {
		where = append(where, "l.country = ?")
		args = append(args, strings.ToUpper(*q.Country))
	}
	if q.Q != nil && strings.TrimSpace(*q.Q) != "" {
		like := "%" + escapeLike(strings.TrimSpace(*q.Q)) + "%"
		where = append(where, "(l.title LIKE ? OR l.description LIKE ?)")
		args = append(args, like, like)
	}
	if q.MinPrice != nil {
		where = append(where, "l.price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, "l.price <= ?")
		args = append(args, *q.MaxPrice)
	}
	if q.MinRating != nil {
		where = append(where, "l.avg_rating >= ?")
		args = append(args, *q.MinRating)
	}
	if q.Guests > 0 {
		where = append(where, "l.capacity >= ?")
		args = append(args, q.Guests)
	}
	if q.From != nil && q.To != nil {
		where = append(where, `l.capacity > (
  SELECT COALESCE(SUM(b.quantity), 0) FROM bookings b
  WHERE b.listing_id = l.id AND b.status IN ('pending', 'confirmed')
    AND (b.status = 'confirmed' OR b.expires_at > ?)
    AND b.start_date < ? AND b.end_date > ?)`)
		args = append(args, time.Now().UTC(), q.To.UTC(), q.From.UTC())
	}

	order, ok := listingOrder[q.Sort]
	if !ok {
		order = listingOrder[domain.SortNewest]
	}
	query := fmt.Sprintf("SELECT%s FROM listings l WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		listingColumns, strings.Join(where, " AND "), order)
	args = append(args, q.Limit, q.Offset)

	var rows []listingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return listingsFromRows(rows), nil
}

func listingsFromRows(rows []listingRow) []domain.Listing {
	out := make([]domain.Listing, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
