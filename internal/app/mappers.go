package app

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"croffers/internal/domain"
)

/********** alias registries (single source of truth) **********/

var popularityAliases = map[string][]string{
	"hour":  {"hour", "h", "hour_of_day", "hourOfDay", "time.hour"},
	"score": {"score", "popularity", "busyness", "value", "percent", "occupancy"},
	"ratio": {"ratio", "busyness_ratio", "fraction"},
	"time":  {"time", "slot", "label"},
}

var weatherAliases = map[string][]string{
	"condition": {
		"condition", "conditions", "weather", "main", "summary",
		"weather.main", "condition.text", "current.condition.text", "current.summary",
	},
	"temp_c":      {"temp_c", "temperature_c", "tempC", "current.temp_c", "temperature"},
	"temp_k":      {"temp_k", "main.temp", "kelvin"},
	"observed_at": {"observed_at", "observedAt", "time", "timestamp", "dt", "current.last_updated_epoch"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return &s
		}
	}
	return nil
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return &f
			}
		case string:
			s := strings.TrimSpace(strings.TrimSuffix(strings.ReplaceAll(v, ",", "."), "%"))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstTimeFlexible: RFC3339 string or unix seconds.
func firstTimeFlexible(m map[string]any, paths ...string) *time.Time {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case string:
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
				t = t.UTC()
				return &t
			}
		case float64:
			t := time.Unix(int64(v), 0).UTC()
			return &t
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

/********** popularity mapper **********/

// mapPopularity turns the feed's hourly items into one sample per hour.
// Items without a usable hour or score are skipped; later duplicates win.
func mapPopularity(destinationID string, in []map[string]any, fetchedAt time.Time) []domain.PopularitySample {
	byHour := make(map[int]domain.PopularitySample, 24)
	for _, it := range in {
		hour := -1
		if f := getFloatFlexible(it, popularityAliases["hour"]...); f != nil {
			hour = int(*f)
		} else if s := firstNonEmptyAlias(it, popularityAliases, "time"); s != nil {
			// "13:00" or "1pm"
			hour = parseHourLabel(*s)
		}
		if hour < 0 || hour > 23 {
			continue
		}

		var score *float64
		if f := getFloatFlexible(it, popularityAliases["score"]...); f != nil {
			score = f
		} else if f := getFloatFlexible(it, popularityAliases["ratio"]...); f != nil {
			x := *f * 100
			score = &x
		}
		if score == nil {
			log.Debug().Str("destination_id", destinationID).Int("hour", hour).Msg("popularity item without score")
			continue
		}

		byHour[hour] = domain.PopularitySample{
			DestinationID: destinationID,
			Hour:          hour,
			Score:         clamp(*score, 0, 100),
			FetchedAt:     fetchedAt,
		}
	}

	out := make([]domain.PopularitySample, 0, len(byHour))
	for h := 0; h < 24; h++ {
		if s, ok := byHour[h]; ok {
			out = append(out, s)
		}
	}
	return out
}

func parseHourLabel(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	pm := strings.HasSuffix(s, "pm")
	am := strings.HasSuffix(s, "am")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "pm"), "am")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	h, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	switch {
	case pm && h < 12:
		h += 12
	case am && h == 12:
		h = 0
	}
	return h
}

/********** weather mapper **********/

var conditionKeywords = []struct {
	cond  domain.WeatherCondition
	words []string
}{
	{domain.WeatherStorm, []string{"storm", "thunder", "squall", "tornado"}},
	{domain.WeatherSnow, []string{"snow", "sleet", "blizzard", "ice"}},
	{domain.WeatherRain, []string{"rain", "drizzle", "shower"}},
	{domain.WeatherFog, []string{"fog", "mist", "haze", "smoke"}},
	{domain.WeatherClouds, []string{"cloud", "overcast"}},
	{domain.WeatherClear, []string{"clear", "sun", "fair"}},
}

func normalizeCondition(s string) domain.WeatherCondition {
	low := strings.ToLower(s)
	for _, ck := range conditionKeywords {
		for _, w := range ck.words {
			if strings.Contains(low, w) {
				return ck.cond
			}
		}
	}
	return domain.WeatherUnknown
}

// mapWeather reads the current conditions; ok is false when neither a
// condition nor a temperature could be found.
func mapWeather(destinationID string, p map[string]any, fetchedAt time.Time) (domain.WeatherReading, bool) {
	w := domain.WeatherReading{
		DestinationID: destinationID,
		Condition:     domain.WeatherUnknown,
		ObservedAt:    fetchedAt,
	}
	found := false

	if s := firstNonEmptyAlias(p, weatherAliases, "condition"); s != nil {
		w.Condition = normalizeCondition(*s)
		found = true
	} else if arr, ok := lookupAny(p, "weather").([]any); ok && len(arr) > 0 {
		// openweather style: weather[0].main
		if first, ok := arr[0].(map[string]any); ok {
			if s := lookupStr(first, "main"); s != "" {
				w.Condition = normalizeCondition(s)
				found = true
			}
		}
	}

	if f := getFloatFlexible(p, weatherAliases["temp_c"]...); f != nil {
		w.TempC = *f
		found = true
	} else if f := getFloatFlexible(p, weatherAliases["temp_k"]...); f != nil {
		w.TempC = math.Round((*f-273.15)*10) / 10
		found = true
	}

	if t := firstTimeFlexible(p, weatherAliases["observed_at"]...); t != nil && !t.After(fetchedAt) {
		w.ObservedAt = *t
	}
	return w, found
}
