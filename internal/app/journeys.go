package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"croffers/internal/domain"
)

const (
	earthRadiusKm   = 6371.0
	transferSpeedKm = 40.0
	airportBuffer   = 45 * time.Minute
	boardingBuffer  = 30 * time.Minute
)

var (
	transferBase  = decimal.RequireFromString("5.00")
	transferPerKm = decimal.RequireFromString("1.20")
)

type JourneyService struct {
	transit  domain.TransitRepository
	listings domain.ListingRepository
}

func NewJourneyService(t domain.TransitRepository, l domain.ListingRepository) *JourneyService {
	return &JourneyService{transit: t, listings: l}
}

// PlanTrip greedily composes airport -> port -> ferry -> accommodation.
func (s *JourneyService) PlanTrip(ctx context.Context, airportCode, accommodationID string, landingAt time.Time) (domain.Itinerary, error) {
	if landingAt.IsZero() {
		return domain.Itinerary{}, invalid("landing time is required")
	}
	ap, err := s.transit.GetAirport(ctx, strings.ToUpper(airportCode))
	if err != nil {
		return domain.Itinerary{}, err
	}
	acc, err := s.listings.GetListing(ctx, accommodationID)
	if err != nil {
		return domain.Itinerary{}, err
	}
	if acc.Kind != domain.KindAccommodation || acc.Coords == nil {
		return domain.Itinerary{}, invalid("destination must be an accommodation with coordinates")
	}
	net, err := s.transit.Network(ctx)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("load network: %w", err)
	}

	it, err := PlanItinerary(net, ap, acc, landingAt)
	if err != nil {
		return domain.Itinerary{}, err
	}
	log.Debug().
		Str("airport", ap.Code).
		Str("listing_id", acc.ID).
		Int("legs", len(it.Legs)).
		Dur("duration", it.TotalDuration).
		Msg("trip planned")
	return it, nil
}

// PlanItinerary is the pure planner behind PlanTrip.
func PlanItinerary(net domain.TransitNetwork, ap domain.Airport, acc domain.Listing, landingAt time.Time) (domain.Itinerary, error) {
	landingAt = landingAt.UTC()
	dest := *acc.Coords
	ports := make(map[string]domain.Port, len(net.Ports))
	for _, p := range net.Ports {
		ports[p.ID] = p
	}

	// 1) arrival port: nearest port that ferries arrive at
	var arrival *domain.Port
	arrivalKm := math.Inf(1)
	for _, id := range sortedArrivalPorts(net.Routes, ports) {
		p := ports[id]
		if d := Haversine(p.Coords, dest); d < arrivalKm {
			pp := p
			arrival, arrivalKm = &pp, d
		}
	}
	if arrival == nil {
		return domain.Itinerary{}, domain.ErrNoRoute
	}

	// airport already closer than any ferry landing: drive straight there
	if Haversine(ap.Coords, dest) < arrivalKm {
		leg := transferLeg(ap.Name, acc.Title, ap.Coords, dest, landingAt, airportBuffer)
		return itinerary([]domain.Leg{leg}, landingAt, acc.Currency), nil
	}

	// 2) departure port: among routes into the arrival port, nearest the airport
	var departure *domain.Port
	departureKm := math.Inf(1)
	for _, r := range net.Routes {
		if r.ToPortID != arrival.ID || len(r.Departures) == 0 {
			continue
		}
		p, ok := ports[r.FromPortID]
		if !ok {
			continue
		}
		d := Haversine(ap.Coords, p.Coords)
		if d < departureKm || (d == departureKm && p.ID < departure.ID) {
			pp := p
			departure, departureKm = &pp, d
		}
	}
	if departure == nil {
		return domain.Itinerary{}, domain.ErrNoRoute
	}

	// 3) airport -> departure port
	leg1 := transferLeg(ap.Name, departure.Name, ap.Coords, departure.Coords, landingAt, airportBuffer)

	// 4) first sailing after boarding
	ferry, ok := nextSailing(net.Routes, departure.ID, arrival.ID, leg1.Arrival.Add(boardingBuffer))
	if !ok {
		return domain.Itinerary{}, domain.ErrNoRoute
	}
	ferry.From, ferry.To = departure.Name, arrival.Name
	ferry.DistanceKm = round1(Haversine(departure.Coords, arrival.Coords))

	// 5) arrival port -> accommodation
	leg3 := transferLeg(arrival.Name, acc.Title, arrival.Coords, dest, ferry.Arrival, 0)

	return itinerary([]domain.Leg{leg1, ferry, leg3}, landingAt, acc.Currency), nil
}

func sortedArrivalPorts(routes []domain.FerryRoute, ports map[string]domain.Port) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, r := range routes {
		if _, ok := ports[r.ToPortID]; !ok || len(r.Departures) == 0 {
			continue
		}
		if _, dup := seen[r.ToPortID]; dup {
			continue
		}
		seen[r.ToPortID] = struct{}{}
		ids = append(ids, r.ToPortID)
	}
	sort.Strings(ids)
	return ids
}

func transferLeg(from, to string, a, b domain.Coords, depart time.Time, buffer time.Duration) domain.Leg {
	km := Haversine(a, b)
	drive := time.Duration(math.Ceil(km/transferSpeedKm*60)) * time.Minute
	return domain.Leg{
		Kind:       domain.LegTransfer,
		From:       from,
		To:         to,
		Departure:  depart,
		Arrival:    depart.Add(buffer + drive),
		DistanceKm: round1(km),
		Price:      transferBase.Add(transferPerKm.Mul(decimal.NewFromFloat(km))).Round(2),
	}
}

// nextSailing picks the earliest departure at or after ready across all
// routes between the two ports, rolling to the next day when today is done.
func nextSailing(routes []domain.FerryRoute, fromID, toID string, ready time.Time) (domain.Leg, bool) {
	var best domain.Leg
	found := false
	for _, r := range routes {
		if r.FromPortID != fromID || r.ToPortID != toID {
			continue
		}
		dep, ok := firstDeparture(r.Departures, ready)
		if !ok {
			continue
		}
		arr := dep.Add(r.Duration)
		if !found || arr.Before(best.Arrival) || (arr.Equal(best.Arrival) && r.Price.LessThan(best.Price)) {
			best = domain.Leg{
				Kind:      domain.LegFerry,
				Departure: dep,
				Arrival:   arr,
				Price:     r.Price,
				Operator:  r.Operator,
			}
			found = true
		}
	}
	return best, found
}

func firstDeparture(schedule []string, ready time.Time) (time.Time, bool) {
	mins := make([]int, 0, len(schedule))
	for _, hhmm := range schedule {
		if m, ok := parseHHMM(hhmm); ok {
			mins = append(mins, m)
		}
	}
	if len(mins) == 0 {
		return time.Time{}, false
	}
	sort.Ints(mins)
	base := day(ready)
	for _, m := range mins {
		if t := base.Add(time.Duration(m) * time.Minute); !t.Before(ready) {
			return t, true
		}
	}
	return base.AddDate(0, 0, 1).Add(time.Duration(mins[0]) * time.Minute), true
}

func parseHHMM(s string) (int, bool) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	h, err1 := strconv.Atoi(hs)
	m, err2 := strconv.Atoi(ms)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func itinerary(legs []domain.Leg, start time.Time, currency string) domain.Itinerary {
	total := decimal.Zero
	for _, l := range legs {
		total = total.Add(l.Price)
	}
	end := legs[len(legs)-1].Arrival
	return domain.Itinerary{
		Legs:          legs,
		TotalDuration: end.Sub(start),
		TotalPrice:    total.Round(2),
		Currency:      currency,
		ArriveAt:      end,
	}
}

// Haversine is the great-circle distance in km.
func Haversine(a, b domain.Coords) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(b.Lat - a.Lat)
	dLon := rad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
