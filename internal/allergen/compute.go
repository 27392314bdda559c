package allergen

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/firstbites/firstbites/internal/feed"
)

// Date is a calendar date (no time-of-day). It marshals as "2006-01-02".
// Internally the date is stored as midnight UTC so day arithmetic is exact
// regardless of DST transitions in the reference zone.
type Date struct {
	time.Time
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Record is the exposure state for one allergen. DaysSince and LastExposure
// are both nil iff no feed entry ever matched the allergen; Foods then stays
// empty. Foods holds the distinct food strings that matched (not the
// keywords), in first-seen order, for display.
type Record struct {
	Name         string   `json:"name"`
	DaysSince    *int     `json:"days_since_exposure"`
	LastExposure *Date    `json:"last_exposure_date"`
	Foods        []string `json:"foods"`
}

// Snapshot is the complete set of per-allergen records computed at one point
// in time. It is immutable once built: holders may share it freely across
// goroutines without copying.
type Snapshot struct {
	Records    []Record
	ComputedAt time.Time
}

// Compute derives one Record per definition from entries, ranked most-urgent
// first: allergens never consumed sort before all others, then descending by
// days since exposure, with ties keeping definition order.
//
// today supplies the reference day; its location decides where the calendar
// day boundary falls. days_since_exposure is clamped to zero for entries
// timestamped later today.
func Compute(entries []feed.Entry, today time.Time, defs []Definition) Snapshot {
	day := DateOf(today)

	records := make([]Record, 0, len(defs))
	for _, def := range defs {
		var last time.Time
		seen := make(map[string]struct{})
		foods := []string{}

		for _, e := range entries {
			matched := false
			for _, f := range e.Foods {
				if !def.Matches(f) {
					continue
				}
				matched = true
				if _, ok := seen[f]; !ok {
					seen[f] = struct{}{}
					foods = append(foods, f)
				}
			}
			if matched && e.Timestamp.After(last) {
				last = e.Timestamp
			}
		}

		rec := Record{Name: def.Name, Foods: foods}
		if !last.IsZero() {
			exp := DateOf(last.In(today.Location()))
			days := int(day.Sub(exp.Time) / (24 * time.Hour))
			if days < 0 {
				days = 0
			}
			rec.DaysSince = &days
			rec.LastExposure = &exp
		}
		records = append(records, rec)
	}

	// Never-consumed first, then most days since exposure. SliceStable keeps
	// definition order for ties and for the never-consumed group.
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].DaysSince, records[j].DaysSince
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return *a > *b
		}
	})

	return Snapshot{Records: records, ComputedAt: time.Now()}
}
