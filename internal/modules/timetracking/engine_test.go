package timetracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/techclock/internal/clock"
	"github.com/aristath/techclock/internal/database"
	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/events"
	"github.com/aristath/techclock/internal/modules/stopwatch"
	"github.com/aristath/techclock/internal/modules/timeentries"
	testingpkg "github.com/aristath/techclock/internal/testing"
)

type engineFixture struct {
	db     *database.DB
	clock  *clock.Fake
	bus    *events.Bus
	engine *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	db := testingpkg.NewTestDB(t, "timetracking")
	cacheDB := testingpkg.NewTestDB(t, "cache")
	testingpkg.SeedActivityTypes(t, db)
	testingpkg.SeedServiceOrder(t, db, 100, "OT-100", "SCHEDULED")
	testingpkg.SeedServiceOrder(t, db, 101, "OT-DUP", "IN_PROGRESS")
	testingpkg.SeedServiceOrder(t, db, 102, "OT-DUP", "IN_PROGRESS")
	testingpkg.SeedServiceOrder(t, db, 103, "OT-103", "IN_PROGRESS")
	testingpkg.SeedServiceOrder(t, db, 104, "OT-104", "COMPLETED")

	log := zerolog.Nop()
	clk := clock.NewFake(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	bus := events.NewBus(log)
	engine := NewSQLiteEngine(Stores{Ledger: db.Conn(), Cache: cacheDB.Conn()}, events.NewManager(bus, log), clk, time.UTC, log)

	return &engineFixture{db: db, clock: clk, bus: bus, engine: engine}
}

func (f *engineFixture) start(t *testing.T, req StartRequest) *stopwatch.Session {
	s, err := f.engine.StartSession(context.Background(), req)
	require.NoError(t, err)
	return s
}

func TestEngine_StartStopRoundTrip(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s := f.start(t, StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityTraining, Description: "new lathe"})
	assert.Equal(t, stopwatch.StateRunning, s.State())

	f.clock.Advance(2*time.Hour + 30*time.Minute)
	entry, err := f.engine.StopSession(ctx, s.ID)
	require.NoError(t, err)

	assert.Equal(t, 2.5, entry.DurationHours)
	assert.Equal(t, s.ID, entry.SessionID)
	assert.Equal(t, "new lathe", entry.Description)

	current, err := f.engine.GetCurrentSession(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestEngine_StopTwiceReturnsSameEntry(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s := f.start(t, StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityTraining})
	f.clock.Advance(time.Hour)

	first, err := f.engine.StopSession(ctx, s.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second, err := f.engine.StopSession(ctx, s.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1.0, second.DurationHours)
	assert.Equal(t, 1, testingpkg.CountRows(t, f.db, "time_entries", ""))
}

func TestEngine_MidnightWrap(t *testing.T) {
	f := newEngineFixture(t)
	f.clock.Set(time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC))

	s := f.start(t, StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityTraining})
	f.clock.Set(time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC))

	entry, err := f.engine.StopSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, entry.DurationHours)
	assert.True(t, entry.CrossesMidnight)
}

func TestEngine_StopAfterMoreThanADay(t *testing.T) {
	f := newEngineFixture(t)

	s := f.start(t, StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityTraining})
	f.clock.Set(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC))

	entry, err := f.engine.StopSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, entry.DurationHours)
	assert.True(t, entry.CrossesMidnight)
	assert.True(t, entry.EndTime.Equal(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)))
}

func TestEngine_StopOverlappingManualEntryKeepsSessionRunning(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.RecordManual(ctx, timeentries.ManualEntry{
		TechnicianID: 1, Date: "2024-03-04", Start: "09:00", End: "11:00", ActivityTypeID: testingpkg.ActivityTraining,
	})
	require.NoError(t, err)

	f.clock.Set(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	s := f.start(t, StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityTraining})
	f.clock.Set(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC))

	_, err = f.engine.StopSession(ctx, s.ID)
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)

	current, err := f.engine.GetCurrentSession(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, s.ID, current.ID)

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	list, err := f.engine.ListEntries(ctx, 1, day, day)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, timeentries.SourceManual, list[0].Source)
}

func TestEngine_StartServiceReferenceRules(t *testing.T) {
	order := func(id int64) *int64 { return &id }

	testCases := []struct {
		name      string
		req       StartRequest
		wantKind  error
		wantOrder *int64
	}{
		{
			name:     "income without order or reference",
			req:      StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityRepair},
			wantKind: domain.ErrValidation,
		},
		{
			name:     "reference resolves to nothing",
			req:      StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityRepair, ServiceReferenceCode: "OT-404"},
			wantKind: domain.ErrValidation,
		},
		{
			name:     "reference is ambiguous",
			req:      StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityRepair, ServiceReferenceCode: "OT-DUP"},
			wantKind: domain.ErrValidation,
		},
		{
			name:     "reference only matches a scheduled order",
			req:      StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityRepair, ServiceReferenceCode: "OT-100"},
			wantKind: domain.ErrValidation,
		},
		{
			name:     "completed order",
			req:      StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityRepair, ServiceOrderID: order(104)},
			wantKind: domain.ErrValidation,
		},
		{
			name:     "unknown order",
			req:      StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityRepair, ServiceOrderID: order(999)},
			wantKind: domain.ErrNotFound,
		},
		{
			name:     "unknown activity",
			req:      StartRequest{TechnicianID: 1, ActivityTypeID: 999},
			wantKind: domain.ErrNotFound,
		},
		{
			name:      "reference resolves to one in-progress order",
			req:       StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityWarranty, ServiceReferenceCode: " OT-103 "},
			wantOrder: order(103),
		},
		{
			name:      "explicit order",
			req:       StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityRepair, ServiceOrderID: order(100)},
			wantOrder: order(100),
		},
		{
			name: "non-income activity drops the order",
			req:  StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityBreak, ServiceOrderID: order(100)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEngineFixture(t)

			s, err := f.engine.StartSession(context.Background(), tc.req)
			if tc.wantKind != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantKind), "got %v", err)
				assert.Equal(t, 0, testingpkg.CountRows(t, f.db, "stopwatch_sessions", ""))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantOrder, s.ServiceOrderID)
		})
	}
}

func TestEngine_ConcurrentStartsOneWins(t *testing.T) {
	f := newEngineFixture(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ids       []string
		conflicts int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.engine.StartSession(context.Background(),
				StartRequest{TechnicianID: 9, ActivityTypeID: testingpkg.ActivityTraining})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ids = append(ids, s.ID)
			} else if errors.Is(err, domain.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, testingpkg.CountRows(t, f.db, "stopwatch_sessions", "technician_id = 9 AND active = 1"))
}

func TestEngine_StartWhileRunningConflicts(t *testing.T) {
	f := newEngineFixture(t)
	f.start(t, StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityTraining})

	_, err := f.engine.StartSession(context.Background(), StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityShopCleaning})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestEngine_StopUnknownSession(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.StopSession(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = f.engine.GetSession(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestEngine_StopAdvancesServiceOrder(t *testing.T) {
	f := newEngineFixture(t)
	orderID := int64(100)

	s := f.start(t, StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityRepair, ServiceOrderID: &orderID})
	f.clock.Advance(90 * time.Minute)

	entry, err := f.engine.StopSession(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, entry.ServiceOrderID)
	assert.Equal(t, "IN_PROGRESS", testingpkg.ServiceOrderStatus(t, f.db, orderID))
}

func TestEngine_AutoCloseForcesCutoff(t *testing.T) {
	f := newEngineFixture(t)
	s := f.start(t, StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityTraining})
	cutoff := time.Date(2024, 3, 4, 19, 0, 0, 0, time.UTC)
	f.clock.Set(cutoff.Add(2 * time.Hour))

	entry, err := f.engine.AutoClose(context.Background(), s.ID, cutoff)
	require.NoError(t, err)
	assert.True(t, entry.EndTime.Equal(cutoff))
	assert.Equal(t, 11.0, entry.DurationHours)

	got, err := f.engine.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, stopwatch.ClosedCutoff, got.ClosedBy)

	again, err := f.engine.AutoClose(context.Background(), s.ID, cutoff)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, again.ID)
}

func TestEngine_ManualEntryAndApproval(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	var approved []string
	f.bus.Subscribe(events.TimeEntryApproved, func(e events.Event) {
		approved = append(approved, e.Data.(*events.TimeEntryData).TimeEntryID)
	})

	entry, err := f.engine.RecordManual(ctx, timeentries.ManualEntry{
		TechnicianID: 2, Date: "2024-03-01", Start: "09:00", End: "10:00", ActivityTypeID: testingpkg.ActivityTraining,
	})
	require.NoError(t, err)

	got, err := f.engine.ApproveEntry(ctx, entry.ID, 77)
	require.NoError(t, err)
	assert.True(t, got.Approved)
	assert.Equal(t, []string{entry.ID}, approved)

	_, err = f.engine.ApproveEntry(ctx, entry.ID, 77)
	assert.True(t, errors.Is(err, domain.ErrState))

	_, err = f.engine.ApproveEntry(ctx, entry.ID, 0)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	list, err := f.engine.ListEntries(ctx, 2, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEngine_MetricsFollowNewEntries(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	orderID := int64(103)

	s := f.start(t, StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityRepair, ServiceOrderID: &orderID})
	f.clock.Advance(4 * time.Hour)
	_, err := f.engine.StopSession(ctx, s.ID)
	require.NoError(t, err)

	m, err := f.engine.ComputeMetrics(ctx, 1, from, to, 160)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, m.Productivity, 1e-9)

	s = f.start(t, StartRequest{TechnicianID: 1, ActivityTypeID: testingpkg.ActivityRepair, ServiceOrderID: &orderID})
	f.clock.Advance(4 * time.Hour)
	_, err = f.engine.StopSession(ctx, s.ID)
	require.NoError(t, err)

	m, err = f.engine.ComputeMetrics(ctx, 1, from, to, 160)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, m.Productivity, 1e-9)
	assert.InDelta(t, 100.0, m.Efficiency, 1e-9)

	team, err := f.engine.ComputeTeamMetrics(ctx, from, to, 160)
	require.NoError(t, err)
	assert.Len(t, team, 1)
}
