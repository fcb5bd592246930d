package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"roombook/internal/bookings/conflict"
	bookingserrors "roombook/internal/bookings/errors"
	"roombook/internal/bookings/events"
	"roombook/internal/bookings/interval"
	"roombook/internal/bookings/repository"
	"roombook/internal/bookings/validator"
	"roombook/pkg/auth"
	"roombook/pkg/client"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clock = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	alice   = &auth.Identity{UserID: "alice", Role: auth.RoleRegularUser}
	bob     = &auth.Identity{UserID: "bob", Role: auth.RoleRegularUser}
	admin   = &auth.Identity{UserID: "root", Role: auth.RoleAdmin}
	manager = &auth.Identity{UserID: "fm", Role: auth.RoleFacilityManager}
)

func at(hour, minute int) string {
	return time.Date(2030, 1, 1, hour, minute, 0, 0, time.UTC).Format(time.RFC3339)
}

type harness struct {
	now    time.Time
	svc    BookingService
	repo   *memRepo
	locks  *memLocks
	rooms  *fakeRooms
	events *fakePublisher
	cfg    *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		now:   clock,
		repo:  newMemRepo(),
		locks: newMemLocks(),
		rooms: &fakeRooms{rooms: []*model.Room{
			{ID: "r1", Name: "Alpha", Capacity: 4, Location: "HQ", IsAvailable: true},
			{ID: "r2", Name: "Beta", Capacity: 10, Location: "HQ", IsAvailable: true},
			{ID: "r3", Name: "Gamma", Capacity: 20, Location: "Annex", IsAvailable: true},
			{ID: "closed", Name: "Closed", Capacity: 8, Location: "HQ", IsAvailable: false},
		}},
		events: &fakePublisher{},
		cfg: &config.Config{
			Log:               logger.Discard(),
			LockTimeout:       10 * time.Second,
			LockTTL:           30 * time.Second,
			SearchConcurrency: 4,
		},
	}
	h.svc = h.serviceOver(h.repo)
	return h
}

func (h *harness) serviceOver(repo repository.BookingRepository) BookingService {
	return NewBookingService(repo, h.locks, h.rooms,
		validator.NewBookingValidator(logger.Discard()), h.events, h.cfg,
		WithClock(func() time.Time { return h.now }))
}

func (h *harness) book(who *auth.Identity, roomID, start, end string) (*model.Booking, error) {
	return h.svc.Create(context.Background(), who, &model.BookingRequest{
		RoomID:    roomID,
		StartTime: start,
		EndTime:   end,
		Purpose:   "sync",
	})
}

func requireCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}

func conflictIDs(t *testing.T, appErr *apperrors.AppError) []string {
	t.Helper()
	summaries, ok := appErr.Details["conflicts"].([]conflict.Summary)
	require.True(t, ok, "conflicts detail missing: %v", appErr.Details)
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids
}

func assertNoOverlaps(t *testing.T, bookings []*model.Booking) {
	t.Helper()
	for i := range bookings {
		for j := i + 1; j < len(bookings); j++ {
			a := interval.Interval{Start: bookings[i].StartTime, End: bookings[i].EndTime}
			b := interval.Interval{Start: bookings[j].StartTime, End: bookings[j].EndTime}
			assert.False(t, a.Overlaps(b), "active bookings %s and %s overlap", bookings[i].ID, bookings[j].ID)
		}
	}
}

func TestCreate_Success(t *testing.T) {
	h := newHarness(t)

	b, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "alice", b.OwnerID)
	assert.Equal(t, model.BookingStatusActive, b.Status)
	assert.Equal(t, time.UTC, b.StartTime.Location())
	assert.Equal(t, []recordedEvent{{Type: events.TypeCreated, BookingID: b.ID}}, h.events.events)
	assert.Empty(t, h.locks.owners, "room lock must be released")
}

func TestCreate_BackToBack(t *testing.T) {
	h := newHarness(t)

	_, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)
	_, err = h.book(bob, "r1", at(11, 0), at(12, 0))
	require.NoError(t, err)

	assert.Len(t, h.repo.active("r1"), 2)
}

func TestCreate_OverlapListsEveryCollider(t *testing.T) {
	h := newHarness(t)

	first, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)
	second, err := h.book(alice, "r1", at(11, 0), at(12, 0))
	require.NoError(t, err)

	_, err = h.book(bob, "r1", at(10, 30), at(11, 30))
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, []string{first.ID, second.ID}, conflictIDs(t, appErr))

	_, err = h.book(bob, "r1", at(10, 30), at(10, 45))
	appErr = requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, []string{first.ID}, conflictIDs(t, appErr))
}

func TestCreate_OtherRoomUnaffected(t *testing.T) {
	h := newHarness(t)

	_, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)
	_, err = h.book(bob, "r2", at(10, 0), at(11, 0))
	require.NoError(t, err)
}

func TestCancelThenRebook(t *testing.T) {
	h := newHarness(t)

	first, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)

	require.NoError(t, h.svc.Cancel(context.Background(), alice, first.ID))

	_, err = h.book(bob, "r1", at(10, 30), at(11, 30))
	require.NoError(t, err)

	stored, err := h.repo.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, stored.Status)
}

func TestCreate_ConcurrentSameSlot(t *testing.T) {
	h := newHarness(t)
	const n = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.book(alice, "r1", at(9, 0), at(10, 0))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.HasCode(err, apperrors.CodeConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, h.repo.active("r1"), 1)
}

func TestCreate_ConcurrentMixedIntervalsNeverOverlap(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		startMin := (i % 8) * 15
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.book(alice, "r2", at(8+startMin/60, startMin%60), at(9+startMin/60, startMin%60))
		}()
	}
	wg.Wait()

	active := h.repo.active("r2")
	require.NotEmpty(t, active)
	assertNoOverlaps(t, active)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  model.BookingRequest
		code string
	}{
		{
			name: "inverted interval",
			req:  model.BookingRequest{RoomID: "r1", StartTime: at(11, 0), EndTime: at(10, 0)},
			code: apperrors.CodeValidation,
		},
		{
			name: "zero length",
			req:  model.BookingRequest{RoomID: "r1", StartTime: at(10, 0), EndTime: at(10, 0)},
			code: apperrors.CodeValidation,
		},
		{
			name: "missing offset",
			req:  model.BookingRequest{RoomID: "r1", StartTime: "2030-01-01T10:00:00", EndTime: at(11, 0)},
			code: apperrors.CodeValidation,
		},
		{
			name: "start in the past",
			req:  model.BookingRequest{RoomID: "r1", StartTime: "2029-12-31T10:00:00Z", EndTime: at(11, 0)},
			code: apperrors.CodeValidation,
		},
		{
			name: "unknown room",
			req:  model.BookingRequest{RoomID: "nope", StartTime: at(10, 0), EndTime: at(11, 0)},
			code: apperrors.CodeNotFound,
		},
		{
			name: "room flagged unavailable",
			req:  model.BookingRequest{RoomID: "closed", StartTime: at(10, 0), EndTime: at(11, 0)},
			code: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.Create(context.Background(), alice, &tt.req)
			requireCode(t, err, tt.code)
			assert.Zero(t, h.repo.overlapCalls.Load(), "conflict checker must not run")
			assert.Empty(t, h.events.events)
		})
	}
}

func TestCreate_RoomsServiceDown(t *testing.T) {
	h := newHarness(t)
	h.rooms.getFunc = func(context.Context, string) (*model.Room, error) {
		return nil, client.ErrRoomsUnavailable
	}

	_, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	requireCode(t, err, apperrors.CodeUnavailable)
}

func TestCreate_RequiresIdentity(t *testing.T) {
	h := newHarness(t)
	_, err := h.book(nil, "r1", at(10, 0), at(11, 0))
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestCreate_BusyWhenLockHeld(t *testing.T) {
	h := newHarness(t)
	h.locks.alwaysHeld = true
	h.cfg.LockTimeout = 30 * time.Millisecond

	_, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	appErr := requireCode(t, err, apperrors.CodeBusy)

	retry, ok := appErr.RetryAfter()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, retry, time.Second)
	assert.Empty(t, h.repo.active("r1"))
}

func TestCreate_ConstraintViolationBecomesConflict(t *testing.T) {
	h := newHarness(t)
	h.repo.createErr = bookingserrors.ErrSlotTaken

	_, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.NotContains(t, appErr.Message, bookingserrors.ErrSlotTaken.Error())
	assert.Equal(t, int32(1), h.repo.txCalls.Load(), "constraint violations are not retried")
	assert.Empty(t, h.events.events)
}

func TestCreate_WriteConflictIsRetried(t *testing.T) {
	h := newHarness(t)
	h.repo.createErrs = []error{bookingserrors.ErrWriteConflict}

	b, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.repo.txCalls.Load())
	assert.Equal(t, []recordedEvent{{Type: events.TypeCreated, BookingID: b.ID}}, h.events.events)
}

func TestCreate_PersistentWriteConflictOnFreeRoomIsBusy(t *testing.T) {
	h := newHarness(t)
	h.repo.createErr = bookingserrors.ErrWriteConflict

	_, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	appErr := requireCode(t, err, apperrors.CodeBusy)
	_, hasRetry := appErr.RetryAfter()
	assert.True(t, hasRetry)
	assert.Equal(t, int32(maxTxAttempts), h.repo.txCalls.Load())
	assert.Empty(t, h.locks.owners, "room lock must be released")
}

func TestCreate_WriteConflictRetrySeesRival(t *testing.T) {
	h := newHarness(t)
	rival := &model.Booking{
		RoomID:    "r1",
		OwnerID:   "bob",
		StartTime: time.Date(2030, 1, 1, 10, 30, 0, 0, time.UTC),
		EndTime:   time.Date(2030, 1, 1, 11, 30, 0, 0, time.UTC),
		Status:    model.BookingStatusActive,
	}
	svc := h.serviceOver(&racingRepo{memRepo: h.repo, rival: rival})

	_, err := svc.Create(context.Background(), alice, &model.BookingRequest{
		RoomID: "r1", StartTime: at(10, 0), EndTime: at(11, 0),
	})
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, []string{rival.ID}, conflictIDs(t, appErr))
	assert.Equal(t, int32(2), h.repo.txCalls.Load())
}

func TestUpdate_SameIntervalDoesNotConflictWithItself(t *testing.T) {
	h := newHarness(t)

	b, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)

	start, end := at(10, 0), at(11, 0)
	updated, err := h.svc.Update(context.Background(), alice, b.ID, &model.BookingUpdate{StartTime: &start, EndTime: &end})
	require.NoError(t, err)
	assert.True(t, updated.StartTime.Equal(b.StartTime))
}

func TestUpdate_ExtendsIntoNeighbour(t *testing.T) {
	h := newHarness(t)

	b, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)
	neighbour, err := h.book(bob, "r1", at(11, 0), at(12, 0))
	require.NoError(t, err)

	end := at(11, 30)
	_, err = h.svc.Update(context.Background(), alice, b.ID, &model.BookingUpdate{EndTime: &end})
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, []string{neighbour.ID}, conflictIDs(t, appErr))

	end = at(10, 45)
	purpose := "  shorter  "
	updated, err := h.svc.Update(context.Background(), alice, b.ID, &model.BookingUpdate{EndTime: &end, Purpose: &purpose})
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, updated.EndTime.Sub(updated.StartTime))
	assert.Equal(t, "shorter", updated.Purpose)
	assert.Equal(t, events.TypeUpdated, h.events.events[len(h.events.events)-1].Type)
}

func TestUpdate_KeepsStartCommittedByAnotherWriter(t *testing.T) {
	h := newHarness(t)
	b, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)

	nine := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	svc := h.serviceOver(&movingRepo{memRepo: h.repo, move: func(stored *model.Booking) {
		stored.StartTime = nine
	}})

	end := at(12, 0)
	updated, err := svc.Update(context.Background(), alice, b.ID, &model.BookingUpdate{EndTime: &end})
	require.NoError(t, err)
	assert.True(t, updated.StartTime.Equal(nine), "start = %s", updated.StartTime)
	assert.Equal(t, 12, updated.EndTime.Hour())

	stored, err := h.repo.FindByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, stored.StartTime.Equal(nine))
}

func TestUpdate_ExtendRunningMeeting(t *testing.T) {
	h := newHarness(t)
	b, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)

	h.now = time.Date(2030, 1, 1, 10, 30, 0, 0, time.UTC)

	end := at(11, 30)
	updated, err := h.svc.Update(context.Background(), alice, b.ID, &model.BookingUpdate{EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, updated.EndTime.Sub(updated.StartTime))

	// Moving the start is still held to the future.
	start := at(10, 15)
	_, err = h.svc.Update(context.Background(), alice, b.ID, &model.BookingUpdate{StartTime: &start})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestUpdate_Policies(t *testing.T) {
	h := newHarness(t)

	b, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)
	purpose := "x"

	_, err = h.svc.Update(context.Background(), bob, b.ID, &model.BookingUpdate{Purpose: &purpose})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.svc.Update(context.Background(), manager, b.ID, &model.BookingUpdate{Purpose: &purpose})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = h.svc.Update(context.Background(), admin, b.ID, &model.BookingUpdate{Purpose: &purpose})
	require.NoError(t, err)

	_, err = h.svc.Update(context.Background(), alice, b.ID, &model.BookingUpdate{})
	requireCode(t, err, apperrors.CodeInvalidInput)

	_, err = h.svc.Update(context.Background(), alice, "missing", &model.BookingUpdate{Purpose: &purpose})
	requireCode(t, err, apperrors.CodeNotFound)

	inverted := at(9, 0)
	_, err = h.svc.Update(context.Background(), alice, b.ID, &model.BookingUpdate{EndTime: &inverted})
	requireCode(t, err, apperrors.CodeValidation)

	require.NoError(t, h.svc.Cancel(context.Background(), alice, b.ID))
	_, err = h.svc.Update(context.Background(), alice, b.ID, &model.BookingUpdate{Purpose: &purpose})
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestCancel_Policies(t *testing.T) {
	h := newHarness(t)

	b, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)

	err = h.svc.Cancel(context.Background(), bob, b.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	err = h.svc.Cancel(context.Background(), manager, b.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	require.NoError(t, h.svc.Cancel(context.Background(), admin, b.ID))

	err = h.svc.Cancel(context.Background(), alice, b.ID)
	requireCode(t, err, apperrors.CodeInvalidState)

	err = h.svc.Cancel(context.Background(), alice, "missing")
	requireCode(t, err, apperrors.CodeNotFound)

	assert.Equal(t, events.TypeCancelled, h.events.events[len(h.events.events)-1].Type)
}

func TestGetByID_Visibility(t *testing.T) {
	h := newHarness(t)

	b, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)

	for _, who := range []*auth.Identity{alice, admin, manager} {
		got, err := h.svc.GetByID(context.Background(), who, b.ID)
		require.NoError(t, err, who.UserID)
		assert.Equal(t, b.ID, got.ID)
	}

	_, err = h.svc.GetByID(context.Background(), bob, b.ID)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestList_ScopedByRole(t *testing.T) {
	h := newHarness(t)

	_, err := h.book(alice, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)
	_, err = h.book(bob, "r2", at(10, 0), at(11, 0))
	require.NoError(t, err)
	cancelled, err := h.book(bob, "r3", at(10, 0), at(11, 0))
	require.NoError(t, err)
	require.NoError(t, h.svc.Cancel(context.Background(), bob, cancelled.ID))

	own, total, err := h.svc.List(context.Background(), alice, model.BookingFilter{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "alice", own[0].OwnerID)

	all, total, err := h.svc.List(context.Background(), manager, model.BookingFilter{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	active, total, err := h.svc.List(context.Background(), admin, model.BookingFilter{Status: model.BookingStatusActive, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, active, 2)

	_, _, err = h.svc.List(context.Background(), admin, model.BookingFilter{Status: "confirmed"})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestListByOwner(t *testing.T) {
	h := newHarness(t)

	_, err := h.book(bob, "r1", at(10, 0), at(11, 0))
	require.NoError(t, err)

	_, _, err = h.svc.ListByOwner(context.Background(), alice, "bob", 10, 0)
	requireCode(t, err, apperrors.CodeForbidden)

	bookings, total, err := h.svc.ListByOwner(context.Background(), bob, "bob", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, bookings, 1)

	bookings, _, err = h.svc.ListByOwner(context.Background(), manager, "alice", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.NotNil(t, bookings)
}
