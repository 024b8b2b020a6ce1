package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/modules/activities"
	"github.com/aristath/techclock/internal/modules/timeentries"
)

const dateLayout = timeentries.DateLayout

// EntrySource lists time entries for an inclusive date range.
type EntrySource interface {
	ListByTechnician(ctx context.Context, technicianID int64, from, to string) ([]timeentries.TimeEntry, error)
	ListByPeriod(ctx context.Context, from, to string) ([]timeentries.TimeEntry, error)
}

// Classifier resolves activity types.
type Classifier interface {
	Classify(ctx context.Context, id int64) (activities.ActivityType, error)
}

// Aggregator computes MonthlyMetrics on demand.
type Aggregator struct {
	entries  EntrySource
	taxonomy Classifier
	cache    *Cache
	log      zerolog.Logger
}

// NewAggregator creates an aggregator. cache may be nil.
func NewAggregator(entries EntrySource, taxonomy Classifier, cache *Cache, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		entries:  entries,
		taxonomy: taxonomy,
		cache:    cache,
		log:      log.With().Str("service", "metrics").Logger(),
	}
}

// Compute returns the technician's metrics for the inclusive period
// [periodStart, periodEnd] against the supplied contracted baseline.
func (a *Aggregator) Compute(ctx context.Context, technicianID int64, periodStart, periodEnd time.Time, contractedHours float64) (*MonthlyMetrics, error) {
	from, to, err := periodBounds(periodStart, periodEnd, contractedHours)
	if err != nil {
		return nil, err
	}

	key := CacheKey(technicianID, from, to, contractedHours)
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	entries, err := a.entries.ListByTechnician(ctx, technicianID, from, to)
	if err != nil {
		return nil, err
	}

	m, err := a.fold(ctx, technicianID, periodStart, from, to, contractedHours, entries)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.Put(ctx, key, m)
	}
	return m, nil
}

// ComputeTeam returns metrics for every technician with at least one entry
// in the period, each against the same contracted baseline, ordered by
// technician ID.
func (a *Aggregator) ComputeTeam(ctx context.Context, periodStart, periodEnd time.Time, contractedHours float64) ([]MonthlyMetrics, error) {
	from, to, err := periodBounds(periodStart, periodEnd, contractedHours)
	if err != nil {
		return nil, err
	}

	entries, err := a.entries.ListByPeriod(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byTechnician := make(map[int64][]timeentries.TimeEntry)
	for _, e := range entries {
		byTechnician[e.TechnicianID] = append(byTechnician[e.TechnicianID], e)
	}

	ids := make([]int64, 0, len(byTechnician))
	for id := range byTechnician {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]MonthlyMetrics, 0, len(ids))
	for _, id := range ids {
		m, err := a.fold(ctx, id, periodStart, from, to, contractedHours, byTechnician[id])
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, nil
}

func (a *Aggregator) fold(ctx context.Context, technicianID int64, periodStart time.Time, from, to string, contractedHours float64, entries []timeentries.TimeEntry) (*MonthlyMetrics, error) {
	types := make(map[int64]activities.ActivityType)
	for _, e := range entries {
		if _, ok := types[e.ActivityTypeID]; ok {
			continue
		}
		at, err := a.taxonomy.Classify(ctx, e.ActivityTypeID)
		if err != nil {
			return nil, err
		}
		types[e.ActivityTypeID] = at
	}

	m := Fold(entries, types, contractedHours)
	m.TechnicianID = technicianID
	m.PeriodStart = from
	m.PeriodEnd = to
	m.Month = int(periodStart.Month())
	m.Year = periodStart.Year()
	return &m, nil
}

// Fold sums entries by the taxonomy predicates and derives the ratios.
// Every entry's activity type must be present in types.
func Fold(entries []timeentries.TimeEntry, types map[int64]activities.ActivityType, contractedHours float64) MonthlyMetrics {
	var total, available, income, billable []float64
	perActivity := make(map[int64]float64)

	for _, e := range entries {
		at := types[e.ActivityTypeID]
		h := e.DurationHours

		total = append(total, h)
		perActivity[e.ActivityTypeID] += h
		if activities.IsAvailable(at) {
			available = append(available, h)
		}
		if activities.IncomeProducing(at) {
			income = append(income, h)
		}
		if activities.BillableIncome(at) {
			billable = append(billable, h)
		}
	}

	m := MonthlyMetrics{
		ContractedHours: contractedHours,
		TotalHours:      floats.Sum(total),
		AvailableHours:  floats.Sum(available),
		IncomeHours:     floats.Sum(income),
		BillableHours:   floats.Sum(billable),
		EntryCount:      len(entries),
	}
	m.Productivity = percent(m.IncomeHours, m.ContractedHours)
	m.Efficiency = percent(m.BillableHours, m.IncomeHours)
	m.Performance = percent(m.BillableHours, m.ContractedHours)

	m.ByActivity = make([]ActivityHours, 0, len(perActivity))
	for id, h := range perActivity {
		m.ByActivity = append(m.ByActivity, ActivityHours{ActivityTypeID: id, Name: types[id].Name, Hours: h})
	}
	sort.Slice(m.ByActivity, func(i, j int) bool {
		if m.ByActivity[i].Hours != m.ByActivity[j].Hours {
			return m.ByActivity[i].Hours > m.ByActivity[j].Hours
		}
		return m.ByActivity[i].ActivityTypeID < m.ByActivity[j].ActivityTypeID
	})
	return m
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// ContractedHours is the default baseline for a period: hoursPerDay for every
// Monday to Friday in the inclusive range.
func ContractedHours(periodStart, periodEnd time.Time, hoursPerDay float64) float64 {
	start := time.Date(periodStart.Year(), periodStart.Month(), periodStart.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(periodEnd.Year(), periodEnd.Month(), periodEnd.Day(), 0, 0, 0, 0, time.UTC)

	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return float64(days) * hoursPerDay
}

// MonthBounds returns the first and last day of t's month.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first, first.AddDate(0, 1, -1)
}

func periodBounds(periodStart, periodEnd time.Time, contractedHours float64) (string, string, error) {
	from := periodStart.Format(dateLayout)
	to := periodEnd.Format(dateLayout)
	if to < from {
		return "", "", domain.Validationf("period ends %s before it starts %s", to, from)
	}
	if contractedHours < 0 {
		return "", "", domain.Validationf("contracted hours cannot be negative")
	}
	return from, to, nil
}
