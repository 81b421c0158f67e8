package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"croffers/internal/domain"
)

type destinationRow struct {
	ID       string          `db:"id"`
	Name     string          `db:"name"`
	City     string          `db:"city"`
	Country  string          `db:"country"`
	Lat      float64         `db:"lat"`
	Lon      float64         `db:"lon"`
	Capacity int             `db:"capacity"`
	Outdoor  bool            `db:"outdoor"`
	Rating   sql.NullFloat64 `db:"rating"`
}

func (row destinationRow) toDomain() domain.Destination {
	return domain.Destination{
		ID:       row.ID,
		Name:     row.Name,
		City:     row.City,
		Country:  row.Country,
		Coords:   domain.Coords{Lat: row.Lat, Lon: row.Lon},
		Capacity: row.Capacity,
		Outdoor:  row.Outdoor,
		Rating:   ptrF64(row.Rating),
	}
}

func (r *Repo) ListDestinations(ctx context.Context, city string) ([]domain.Destination, error) {
	query := "SELECT " + destinationColumns + " FROM destinations"
	var args []any
	if city != "" {
		query += " WHERE city = ?"
		args = append(args, city)
	}
	query += " ORDER BY id"

	var rows []destinationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Destination, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *Repo) GetDestination(ctx context.Context, id string) (domain.Destination, error) {
	var row destinationRow
	if err := r.db.GetContext(ctx, &row, "SELECT "+destinationColumns+" FROM destinations WHERE id = ?", id); err != nil {
		return domain.Destination{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (r *Repo) InsertSensorReading(ctx context.Context, s domain.SensorReading) error {
	_, err := r.db.ExecContext(ctx, insertSensorSQL, s.DestinationID, s.Count, s.RecordedAt.UTC())
	return err
}

func (r *Repo) LatestSensorReading(ctx context.Context, destinationID string) (*domain.SensorReading, error) {
	var s domain.SensorReading
	if err := r.db.GetContext(ctx, &s, latestSensorSQL, destinationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// UpsertPopularity writes all samples in a single multi-row statement.
func (r *Repo) UpsertPopularity(ctx context.Context, samples []domain.PopularitySample) error {
	if len(samples) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(upsertPopularityPrefix)
	args := make([]any, 0, len(samples)*4)
	for i, s := range samples {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?)")
		args = append(args, s.DestinationID, s.Hour, s.Score, s.FetchedAt.UTC())
	}
	b.WriteString(upsertPopularityOnDup)
	_, err := r.db.ExecContext(ctx, b.String(), args...)
	return err
}

func (r *Repo) Popularity(ctx context.Context, destinationID string) ([]domain.PopularitySample, error) {
	out := []domain.PopularitySample{}
	err := r.db.SelectContext(ctx, &out, selectPopularitySQL, destinationID)
	return out, err
}

func (r *Repo) UpsertWeather(ctx context.Context, w domain.WeatherReading) error {
	_, err := r.db.ExecContext(ctx, upsertWeatherSQL, w.DestinationID, string(w.Condition), w.TempC, w.ObservedAt.UTC())
	return err
}

func (r *Repo) LatestWeather(ctx context.Context, destinationID string) (*domain.WeatherReading, error) {
	var w domain.WeatherReading
	if err := r.db.GetContext(ctx, &w, latestWeatherSQL, destinationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (r *Repo) CreateEvent(ctx context.Context, e domain.Event) error {
	e.StartsAt, e.EndsAt = e.StartsAt.UTC(), e.EndsAt.UTC()
	_, err := r.db.NamedExecContext(ctx, insertEventSQL, e)
	return err
}

func (r *Repo) EventsBetween(ctx context.Context, destinationID string, from, to time.Time) ([]domain.Event, error) {
	out := []domain.Event{}
	err := r.db.SelectContext(ctx, &out, eventsBetweenSQL, destinationID, from.UTC(), to.UTC())
	return out, err
}

func (r *Repo) SaveCrowdIndex(ctx context.Context, ci domain.CrowdIndex) error {
	comp, err := json.Marshal(ci.Components)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertCrowdIndexSQL,
		ci.DestinationID, ci.Value, string(ci.Level), string(comp), ci.ComputedAt.UTC())
	return err
}

type crowdIndexRow struct {
	DestinationID string    `db:"destination_id"`
	Value         float64   `db:"value"`
	Level         string    `db:"level"`
	Components    string    `db:"components"`
	ComputedAt    time.Time `db:"computed_at"`
}

func (r *Repo) CrowdHistory(ctx context.Context, destinationID string, since time.Time, limit int) ([]domain.CrowdIndex, error) {
	var rows []crowdIndexRow
	if err := r.db.SelectContext(ctx, &rows, crowdHistorySQL, destinationID, since.UTC(), limit); err != nil {
		return nil, err
	}
	out := make([]domain.CrowdIndex, 0, len(rows))
	for _, row := range rows {
		ci := domain.CrowdIndex{
			DestinationID: row.DestinationID,
			Value:         row.Value,
			Level:         domain.CrowdLevel(row.Level),
			ComputedAt:    row.ComputedAt,
		}
		_ = json.Unmarshal([]byte(row.Components), &ci.Components)
		out = append(out, ci)
	}
	return out, nil
}

func (r *Repo) LogMiss(ctx context.Context, destinationID string, status int, reason string) error {
	_, err := r.db.ExecContext(ctx, insertMissSQL, destinationID, status, reason)
	return err
}
