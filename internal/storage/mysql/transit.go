package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"croffers/internal/domain"
)

type placeRow struct {
	Key  string  `db:"key"`
	Name string  `db:"name"`
	Lat  float64 `db:"lat"`
	Lon  float64 `db:"lon"`
}

type routeRow struct {
	ID          string          `db:"id"`
	FromPortID  string          `db:"from_port_id"`
	ToPortID    string          `db:"to_port_id"`
	Departures  string          `db:"departures"`
	DurationMin int             `db:"duration_min"`
	Price       decimal.Decimal `db:"price"`
	Currency    string          `db:"currency"`
	Operator    string          `db:"operator"`
}

func (r *Repo) GetAirport(ctx context.Context, code string) (domain.Airport, error) {
	var row placeRow
	err := r.db.GetContext(ctx, &row,
		selectAirportsSQL+" WHERE code = ?", strings.ToUpper(code))
	if err != nil {
		return domain.Airport{}, notFound(err)
	}
	return domain.Airport{Code: row.Key, Name: row.Name, Coords: domain.Coords{Lat: row.Lat, Lon: row.Lon}}, nil
}

// Network loads airports, ports and routes concurrently.
func (r *Repo) Network(ctx context.Context) (domain.TransitNetwork, error) {
	var (
		airports, ports []placeRow
		routes          []routeRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.db.SelectContext(gctx, &airports, selectAirportsSQL+" ORDER BY code")
	})
	g.Go(func() error {
		return r.db.SelectContext(gctx, &ports, selectPortsSQL)
	})
	g.Go(func() error {
		return r.db.SelectContext(gctx, &routes, selectRoutesSQL)
	})
	if err := g.Wait(); err != nil {
		return domain.TransitNetwork{}, err
	}

	net := domain.TransitNetwork{
		Airports: make([]domain.Airport, 0, len(airports)),
		Ports:    make([]domain.Port, 0, len(ports)),
		Routes:   make([]domain.FerryRoute, 0, len(routes)),
	}
	for _, a := range airports {
		net.Airports = append(net.Airports, domain.Airport{Code: a.Key, Name: a.Name, Coords: domain.Coords{Lat: a.Lat, Lon: a.Lon}})
	}
	for _, p := range ports {
		net.Ports = append(net.Ports, domain.Port{ID: p.Key, Name: p.Name, Coords: domain.Coords{Lat: p.Lat, Lon: p.Lon}})
	}
	for _, rt := range routes {
		fr := domain.FerryRoute{
			ID:         rt.ID,
			FromPortID: rt.FromPortID,
			ToPortID:   rt.ToPortID,
			Duration:   time.Duration(rt.DurationMin) * time.Minute,
			Price:      rt.Price,
			Currency:   rt.Currency,
			Operator:   rt.Operator,
		}
		if err := json.Unmarshal([]byte(rt.Departures), &fr.Departures); err != nil {
			return domain.TransitNetwork{}, fmt.Errorf("route %s departures: %w", rt.ID, err)
		}
		net.Routes = append(net.Routes, fr)
	}
	return net, nil
}
