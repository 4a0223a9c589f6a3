package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"atrium/config"
	kafkaMocks "atrium/infras/kafka/mocks"
	"atrium/infras/otel/mocks"
	reservationMocks "atrium/internal/domains/reservation/mocks"
	"atrium/internal/domains/reservation/model"
	"atrium/internal/domains/reservation/model/dto"
	"atrium/internal/domains/reservation/service"
	spaceMocks "atrium/internal/domains/space/mocks"
	spaceModel "atrium/internal/domains/space/model"
	"atrium/shared/cache"
	cacheMocks "atrium/shared/cache/mocks"
	"atrium/shared/constant"
	gDto "atrium/shared/dto"
	"atrium/shared/failure"
	gModel "atrium/shared/model"
	"atrium/shared/timezone"
)

var testNow = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

type serviceMocks struct {
	repo      *reservationMocks.MockReservation
	spaceRepo *spaceMocks.MockSpace
	cache     *cacheMocks.MockRedisCache
	events    *kafkaMocks.MockClient
}

func newService(t *testing.T) (service.Reservation, serviceMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)

	m := serviceMocks{
		repo:      reservationMocks.NewMockReservation(ctrl),
		spaceRepo: spaceMocks.NewMockSpace(ctrl),
		cache:     cacheMocks.NewMockRedisCache(ctrl),
		events:    kafkaMocks.NewMockClient(ctrl),
	}

	cfg := &config.Config{}
	cfg.Cache.TTL = 3600
	cfg.Reservation.MinDurationMinutes = 30
	cfg.Reservation.MaxDurationMinutes = 480
	cfg.Reservation.MaxAdvanceDays = 90
	cfg.Reservation.QueryWindowDays = 30
	cfg.Reservation.WriteRetries = 3
	cfg.Kafka.Topics.ReservationEvents = "reservation-events"

	// Event publishing and cache invalidation run on background goroutines.
	m.events.EXPECT().SendMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	m.cache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	m.cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	m.cache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	clock := timezone.FixedClock{Instant: testNow}

	svc := service.New(m.repo, m.spaceRepo, cfg, m.cache, m.events, clock, mocks.NewOtel())

	return svc, m
}

func authedCtx(userID, role string) context.Context {
	ctx := context.WithValue(context.Background(), constant.ContextKeyUserID, userID)

	return context.WithValue(ctx, constant.ContextKeyUserRole, role)
}

func activeSpace(id string) spaceModel.Space {
	return spaceModel.Space{ID: id, Name: "Conference Room A", Active: true}
}

func pendingReservation(id, spaceID, owner string, start, end time.Time) model.Reservation {
	return model.Reservation{
		ID:      id,
		SpaceID: spaceID,
		Title:   "Team sync",
		StartAt: start,
		EndAt:   end,
		Status:  model.StatusPending,
		Metadata: gModel.Metadata{
			CreatedAt:  testNow,
			ModifiedAt: testNow,
			CreatedBy:  owner,
			ModifiedBy: owner,
		},
	}
}

func rfc3339(t time.Time) string {
	return t.Format(time.RFC3339)
}

func gDtoParams() gDto.QueryParams {
	return gDto.QueryParams{Page: 1, Limit: 10}
}

func TestReservationService_Create(t *testing.T) {
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	validReq := dto.CreateReservationRequest{
		SpaceID: "space-1",
		Title:   "Team sync",
		StartAt: rfc3339(start),
		EndAt:   rfc3339(end),
	}

	tests := []struct {
		name      string
		req       dto.CreateReservationRequest
		setupMock func(m serviceMocks)
		wantErr   error
		wantCode  int
	}{
		{
			name: "successful creation",
			req:  validReq,
			setupMock: func(m serviceMocks) {
				m.spaceRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeSpace("space-1"), nil)
				m.repo.EXPECT().
					WithSpaceLock(gomock.Any(), "space-1", gomock.Any()).
					DoAndReturn(func(ctx context.Context, _ string, fn func(context.Context, *sqlx.Tx) error) error {
						return fn(ctx, nil)
					})
				m.repo.EXPECT().
					FindOverlappingTx(gomock.Any(), gomock.Any(), "space-1", start, end, "").
					Return(nil, nil)
				m.repo.EXPECT().
					InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil)
			},
		},
		{
			name: "window overlaps an existing reservation",
			req:  validReq,
			setupMock: func(m serviceMocks) {
				m.spaceRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeSpace("space-1"), nil)
				m.repo.EXPECT().
					WithSpaceLock(gomock.Any(), "space-1", gomock.Any()).
					DoAndReturn(func(ctx context.Context, _ string, fn func(context.Context, *sqlx.Tx) error) error {
						return fn(ctx, nil)
					})
				m.repo.EXPECT().
					FindOverlappingTx(gomock.Any(), gomock.Any(), "space-1", start, end, "").
					Return([]model.Reservation{pendingReservation("other", "space-1", "bob", start, end)}, nil)
			},
			wantErr: failure.OverlapError,
		},
		{
			name: "space not found",
			req:  validReq,
			setupMock: func(m serviceMocks) {
				m.spaceRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(spaceModel.Space{}, nil)
			},
			wantCode: 404,
		},
		{
			name: "space inactive",
			req:  validReq,
			setupMock: func(m serviceMocks) {
				inactive := activeSpace("space-1")
				inactive.Active = false

				m.spaceRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(inactive, nil)
			},
			wantCode: 400,
		},
		{
			name: "invalid datetime format",
			req: dto.CreateReservationRequest{
				SpaceID: "space-1",
				Title:   "Team sync",
				StartAt: "tomorrow at nine",
				EndAt:   rfc3339(end),
			},
			setupMock: func(m serviceMocks) {
				m.spaceRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeSpace("space-1"), nil)
			},
			wantCode: 400,
		},
		{
			name: "zero length window",
			req: dto.CreateReservationRequest{
				SpaceID: "space-1",
				Title:   "Team sync",
				StartAt: rfc3339(start),
				EndAt:   rfc3339(start),
			},
			setupMock: func(m serviceMocks) {
				m.spaceRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeSpace("space-1"), nil)
			},
			wantErr: failure.InvalidWindowError,
		},
		{
			name: "shorter than minimum duration",
			req: dto.CreateReservationRequest{
				SpaceID: "space-1",
				Title:   "Team sync",
				StartAt: rfc3339(start),
				EndAt:   rfc3339(start.Add(10 * time.Minute)),
			},
			setupMock: func(m serviceMocks) {
				m.spaceRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeSpace("space-1"), nil)
			},
			wantCode: 400,
		},
		{
			name: "longer than maximum duration",
			req: dto.CreateReservationRequest{
				SpaceID: "space-1",
				Title:   "Team sync",
				StartAt: rfc3339(start),
				EndAt:   rfc3339(start.Add(9 * time.Hour)),
			},
			setupMock: func(m serviceMocks) {
				m.spaceRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeSpace("space-1"), nil)
			},
			wantCode: 400,
		},
		{
			name: "beyond the advance horizon",
			req: dto.CreateReservationRequest{
				SpaceID: "space-1",
				Title:   "Team sync",
				StartAt: rfc3339(testNow.AddDate(0, 0, 91)),
				EndAt:   rfc3339(testNow.AddDate(0, 0, 91).Add(time.Hour)),
			},
			setupMock: func(m serviceMocks) {
				m.spaceRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeSpace("space-1"), nil)
			},
			wantCode: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMock(m)

			res, err := svc.Create(authedCtx("alice", constant.RoleRequester), tt.req)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantCode != 0:
				assert.Error(t, err)
				assert.Equal(t, tt.wantCode, failure.GetCode(err))
			default:
				assert.NoError(t, err)
				assert.Equal(t, string(model.StatusPending), res.Status)
				assert.Equal(t, "space-1", res.SpaceID)
				assert.NotEmpty(t, res.ID)
			}
		})
	}
}

func TestReservationService_Create_RetriesTransientContention(t *testing.T) {
	svc, m := newService(t)

	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	m.spaceRepo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(activeSpace("space-1"), nil)
	m.repo.EXPECT().
		WithSpaceLock(gomock.Any(), "space-1", gomock.Any()).
		Return(&pq.Error{Code: "40001"}).
		Times(3)

	_, err := svc.Create(authedCtx("alice", constant.RoleRequester), dto.CreateReservationRequest{
		SpaceID: "space-1",
		Title:   "Team sync",
		StartAt: rfc3339(start),
		EndAt:   rfc3339(end),
	})

	assert.Error(t, err)
	assert.Equal(t, 409, failure.GetCode(err))
}

// Racing creates for the same space serialize on the space lock, so exactly
// one wins and the rest observe its row.
func TestReservationService_Create_ConcurrentSameWindow(t *testing.T) {
	svc, m := newService(t)

	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	var (
		mu    sync.Mutex
		store []model.Reservation
	)

	m.spaceRepo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(activeSpace("space-1"), nil).
		AnyTimes()

	m.repo.EXPECT().
		WithSpaceLock(gomock.Any(), "space-1", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, fn func(context.Context, *sqlx.Tx) error) error {
			mu.Lock()
			defer mu.Unlock()

			return fn(ctx, nil)
		}).
		AnyTimes()

	m.repo.EXPECT().
		FindOverlappingTx(gomock.Any(), gomock.Any(), "space-1", gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *sqlx.Tx, _ string, start, end time.Time, _ string) ([]model.Reservation, error) {
			requested := model.Window{StartAt: start, EndAt: end}

			var overlapping []model.Reservation
			for _, r := range store {
				if r.Status.Active() && requested.Overlaps(r.Window()) {
					overlapping = append(overlapping, r)
				}
			}

			return overlapping, nil
		}).
		AnyTimes()

	m.repo.EXPECT().
		InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *sqlx.Tx, r model.Reservation) error {
			store = append(store, r)

			return nil
		}).
		AnyTimes()

	const workers = 8

	var wg sync.WaitGroup

	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, errs[i] = svc.Create(authedCtx("alice", constant.RoleRequester), dto.CreateReservationRequest{
				SpaceID: "space-1",
				Title:   "Team sync",
				StartAt: rfc3339(start),
				EndAt:   rfc3339(end),
			})
		}(i)
	}

	wg.Wait()

	succeeded := 0

	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, failure.OverlapError)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Len(t, store, 1)
}

func TestReservationService_Update(t *testing.T) {
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	tests := []struct {
		name         string
		actor        string
		role         string
		req          dto.UpdateReservationRequest
		setupMock    func(m serviceMocks)
		wantErr      error
		wantNotFound bool
	}{
		{
			name:  "owner edits title while pending",
			actor: "alice",
			role:  constant.RoleRequester,
			req:   dto.UpdateReservationRequest{Title: "Quarterly review"},
			setupMock: func(m serviceMocks) {
				current := pendingReservation("res-1", "space-1", "alice", start, end)

				m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(current, nil)
				m.repo.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

				updated := current
				updated.Title = "Quarterly review"
				m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(updated, nil)
			},
		},
		{
			name:  "non-owner requester is forbidden",
			actor: "mallory",
			role:  constant.RoleRequester,
			req:   dto.UpdateReservationRequest{Title: "Hijacked"},
			setupMock: func(m serviceMocks) {
				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(pendingReservation("res-1", "space-1", "alice", start, end), nil)
			},
			wantErr: failure.ForbiddenError,
		},
		{
			name:  "owner cannot edit once approved",
			actor: "alice",
			role:  constant.RoleRequester,
			req:   dto.UpdateReservationRequest{Title: "Late change"},
			setupMock: func(m serviceMocks) {
				current := pendingReservation("res-1", "space-1", "alice", start, end)
				current.Status = model.StatusApproved

				m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(current, nil)
			},
			wantErr: failure.InvalidTransitionError,
		},
		{
			name:  "cancelled reservation is immutable even for admins",
			actor: "root",
			role:  constant.RoleAdmin,
			req:   dto.UpdateReservationRequest{Title: "Necromancy"},
			setupMock: func(m serviceMocks) {
				current := pendingReservation("res-1", "space-1", "alice", start, end)
				current.Status = model.StatusCancelled

				m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(current, nil)
			},
			wantErr: failure.InvalidTransitionError,
		},
		{
			name:  "window change re-runs the conflict check",
			actor: "alice",
			role:  constant.RoleRequester,
			req:   dto.UpdateReservationRequest{EndAt: rfc3339(end.Add(time.Hour))},
			setupMock: func(m serviceMocks) {
				current := pendingReservation("res-1", "space-1", "alice", start, end)

				m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(current, nil)
				m.repo.EXPECT().
					WithSpaceLock(gomock.Any(), "space-1", gomock.Any()).
					DoAndReturn(func(ctx context.Context, _ string, fn func(context.Context, *sqlx.Tx) error) error {
						return fn(ctx, nil)
					})
				m.repo.EXPECT().
					FindOverlappingTx(gomock.Any(), gomock.Any(), "space-1", start, end.Add(time.Hour), "res-1").
					Return(nil, nil)
				m.repo.EXPECT().UpdateTx(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

				updated := current
				updated.EndAt = end.Add(time.Hour)
				m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(updated, nil)
			},
		},
		{
			name:  "window change conflicts",
			actor: "alice",
			role:  constant.RoleRequester,
			req:   dto.UpdateReservationRequest{EndAt: rfc3339(end.Add(time.Hour))},
			setupMock: func(m serviceMocks) {
				current := pendingReservation("res-1", "space-1", "alice", start, end)

				m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(current, nil)
				m.repo.EXPECT().
					WithSpaceLock(gomock.Any(), "space-1", gomock.Any()).
					DoAndReturn(func(ctx context.Context, _ string, fn func(context.Context, *sqlx.Tx) error) error {
						return fn(ctx, nil)
					})
				m.repo.EXPECT().
					FindOverlappingTx(gomock.Any(), gomock.Any(), "space-1", start, end.Add(time.Hour), "res-1").
					Return([]model.Reservation{pendingReservation("res-2", "space-1", "bob", end, end.Add(2*time.Hour))}, nil)
			},
			wantErr: failure.OverlapError,
		},
		{
			name:  "moving to another space checks the new space",
			actor: "alice",
			role:  constant.RoleRequester,
			req:   dto.UpdateReservationRequest{SpaceID: "space-2"},
			setupMock: func(m serviceMocks) {
				current := pendingReservation("res-1", "space-1", "alice", start, end)

				m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(current, nil)
				m.spaceRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeSpace("space-2"), nil)
				m.repo.EXPECT().
					WithSpaceLock(gomock.Any(), "space-2", gomock.Any()).
					DoAndReturn(func(ctx context.Context, _ string, fn func(context.Context, *sqlx.Tx) error) error {
						return fn(ctx, nil)
					})
				m.repo.EXPECT().
					FindOverlappingTx(gomock.Any(), gomock.Any(), "space-2", start, end, "res-1").
					Return(nil, nil)
				m.repo.EXPECT().UpdateTx(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

				updated := current
				updated.SpaceID = "space-2"
				m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(updated, nil)
			},
		},
		{
			name:  "reservation not found",
			actor: "alice",
			role:  constant.RoleRequester,
			req:   dto.UpdateReservationRequest{Title: "Anything"},
			setupMock: func(m serviceMocks) {
				m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(model.Reservation{}, nil)
			},
			wantNotFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMock(m)

			_, err := svc.Update(authedCtx(tt.actor, tt.role), tt.req, "res-1")

			switch {
			case tt.wantNotFound:
				assert.Error(t, err)
				assert.Equal(t, 404, failure.GetCode(err))
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestReservationService_ApproveReject(t *testing.T) {
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	t.Run("admin approves a pending reservation", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			Get(gomock.Any(), gomock.Any()).
			Return(pendingReservation("res-1", "space-1", "alice", start, end), nil)
		m.repo.EXPECT().
			UpdateIfStatus(gomock.Any(), "res-1", gomock.Any(), []model.Status{model.StatusPending}).
			DoAndReturn(func(_ context.Context, _ string, fields map[string]any, _ []model.Status) (bool, error) {
				assert.Equal(t, string(model.StatusApproved), fields[model.FieldStatus])
				assert.Equal(t, "root", fields[model.FieldApprovedBy])
				assert.Equal(t, testNow, fields[model.FieldDecisionAt])

				return true, nil
			})

		res, err := svc.Approve(authedCtx("root", constant.RoleAdmin), "res-1", dto.DecisionRequest{})

		assert.NoError(t, err)
		assert.Equal(t, string(model.StatusApproved), res.Status)
		assert.Equal(t, "root", res.ApprovedBy)
		assert.NotEmpty(t, res.DecisionAt)
	})

	t.Run("admin rejects with a note", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			Get(gomock.Any(), gomock.Any()).
			Return(pendingReservation("res-1", "space-1", "alice", start, end), nil)
		m.repo.EXPECT().
			UpdateIfStatus(gomock.Any(), "res-1", gomock.Any(), []model.Status{model.StatusPending}).
			DoAndReturn(func(_ context.Context, _ string, fields map[string]any, _ []model.Status) (bool, error) {
				assert.Equal(t, string(model.StatusRejected), fields[model.FieldStatus])
				assert.Equal(t, "space under renovation", fields[model.FieldDecisionNote])

				return true, nil
			})

		res, err := svc.Reject(authedCtx("root", constant.RoleAdmin), "res-1", dto.DecisionRequest{Note: "space under renovation"})

		assert.NoError(t, err)
		assert.Equal(t, string(model.StatusRejected), res.Status)
		assert.Equal(t, "space under renovation", res.DecisionNote)
	})

	t.Run("requester cannot approve", func(t *testing.T) {
		svc, _ := newService(t)

		_, err := svc.Approve(authedCtx("alice", constant.RoleRequester), "res-1", dto.DecisionRequest{})

		assert.ErrorIs(t, err, failure.ForbiddenError)
	})

	t.Run("approve loses the race to a concurrent transition", func(t *testing.T) {
		svc, m := newService(t)

		// The row was still PENDING at read time but a cancel committed
		// before the decision write; the guarded update matches no row.
		m.repo.EXPECT().
			Get(gomock.Any(), gomock.Any()).
			Return(pendingReservation("res-1", "space-1", "alice", start, end), nil)
		m.repo.EXPECT().
			UpdateIfStatus(gomock.Any(), "res-1", gomock.Any(), []model.Status{model.StatusPending}).
			Return(false, nil)

		_, err := svc.Approve(authedCtx("root", constant.RoleAdmin), "res-1", dto.DecisionRequest{})

		assert.ErrorIs(t, err, failure.InvalidTransitionError)
	})

	t.Run("re-deciding an approved reservation fails", func(t *testing.T) {
		svc, m := newService(t)

		approved := pendingReservation("res-1", "space-1", "alice", start, end)
		approved.Status = model.StatusApproved

		m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(approved, nil)

		_, err := svc.Reject(authedCtx("root", constant.RoleAdmin), "res-1", dto.DecisionRequest{})

		assert.ErrorIs(t, err, failure.InvalidTransitionError)
	})
}

func TestReservationService_Cancel(t *testing.T) {
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	tests := []struct {
		name    string
		actor   string
		role    string
		status  model.Status
		wantErr error
	}{
		{name: "owner cancels pending", actor: "alice", role: constant.RoleRequester, status: model.StatusPending},
		{name: "owner cancels approved", actor: "alice", role: constant.RoleRequester, status: model.StatusApproved},
		{name: "admin cancels on behalf", actor: "root", role: constant.RoleAdmin, status: model.StatusApproved},
		{name: "stranger cannot cancel", actor: "mallory", role: constant.RoleRequester, status: model.StatusPending, wantErr: failure.ForbiddenError},
		{name: "rejected cannot be cancelled", actor: "alice", role: constant.RoleRequester, status: model.StatusRejected, wantErr: failure.InvalidTransitionError},
		{name: "cancel is not idempotent", actor: "alice", role: constant.RoleRequester, status: model.StatusCancelled, wantErr: failure.InvalidTransitionError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)

			current := pendingReservation("res-1", "space-1", "alice", start, end)
			current.Status = tt.status

			m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(current, nil)

			if tt.wantErr == nil {
				m.repo.EXPECT().
					UpdateIfStatus(gomock.Any(), "res-1", gomock.Any(), []model.Status{model.StatusPending, model.StatusApproved}).
					DoAndReturn(func(_ context.Context, _ string, fields map[string]any, _ []model.Status) (bool, error) {
						assert.Equal(t, string(model.StatusCancelled), fields[model.FieldStatus])

						// Cancelling never writes decision fields.
						assert.NotContains(t, fields, model.FieldApprovedBy)
						assert.NotContains(t, fields, model.FieldDecisionAt)

						return true, nil
					})
			}

			res, err := svc.Cancel(authedCtx(tt.actor, tt.role), "res-1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, string(model.StatusCancelled), res.Status)
				assert.Empty(t, res.DecisionAt)
			}
		})
	}
}

func TestReservationService_Cancel_ConcurrentTransition(t *testing.T) {
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	svc, m := newService(t)

	m.repo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(pendingReservation("res-1", "space-1", "alice", start, end), nil)
	m.repo.EXPECT().
		UpdateIfStatus(gomock.Any(), "res-1", gomock.Any(), []model.Status{model.StatusPending, model.StatusApproved}).
		Return(false, nil)

	_, err := svc.Cancel(authedCtx("alice", constant.RoleRequester), "res-1")

	assert.ErrorIs(t, err, failure.InvalidTransitionError)
}

func TestReservationService_GetAll(t *testing.T) {
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	reservations := []model.Reservation{
		pendingReservation("res-1", "space-1", "alice", start, end),
	}

	t.Run("admin sees full records", func(t *testing.T) {
		svc, m := newService(t)

		m.cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(cache.Nil)
		m.repo.EXPECT().Count(gomock.Any(), gomock.Any()).Return(1, nil)
		m.repo.EXPECT().GetAll(gomock.Any(), gomock.Any(), gomock.Any()).Return(reservations, nil)

		res, err := svc.GetAll(authedCtx("root", constant.RoleAdmin), gDtoParams(), dto.RangeQuery{})

		assert.NoError(t, err)
		assert.Len(t, res.Reservations, 1)
		assert.Equal(t, "Team sync", res.Reservations[0].Title)
		assert.Empty(t, res.Reservations[0].Label)
	})

	t.Run("requester sees busy labels only", func(t *testing.T) {
		svc, m := newService(t)

		m.cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(cache.Nil)
		m.repo.EXPECT().Count(gomock.Any(), gomock.Any()).Return(1, nil)
		m.repo.EXPECT().GetAll(gomock.Any(), gomock.Any(), gomock.Any()).Return(reservations, nil)

		res, err := svc.GetAll(authedCtx("bob", constant.RoleRequester), gDtoParams(), dto.RangeQuery{})

		assert.NoError(t, err)
		assert.Len(t, res.Reservations, 1)
		assert.Empty(t, res.Reservations[0].Title)
		assert.Equal(t, "busy", res.Reservations[0].Label)
	})

	t.Run("inverted range is rejected", func(t *testing.T) {
		svc, _ := newService(t)

		rangeStart := testNow.Add(48 * time.Hour)
		rangeEnd := testNow.Add(24 * time.Hour)

		_, err := svc.GetAll(authedCtx("bob", constant.RoleRequester), gDtoParams(), dto.RangeQuery{
			Start: &rangeStart,
			End:   &rangeEnd,
		})

		assert.ErrorIs(t, err, failure.InvalidWindowError)
	})

	t.Run("cache hit skips the repository", func(t *testing.T) {
		svc, m := newService(t)

		m.cache.EXPECT().
			Get(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil)

		_, err := svc.GetAll(authedCtx("root", constant.RoleAdmin), gDtoParams(), dto.RangeQuery{})

		assert.NoError(t, err)
	})
}

func TestReservationService_GetMine(t *testing.T) {
	svc, m := newService(t)

	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	m.repo.EXPECT().Count(gomock.Any(), gomock.Any()).Return(1, nil)
	m.repo.EXPECT().
		GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]model.Reservation{pendingReservation("res-1", "space-1", "alice", start, end)}, nil)

	res, err := svc.GetMine(authedCtx("alice", constant.RoleRequester), gDtoParams(), dto.RangeQuery{})

	assert.NoError(t, err)
	assert.Len(t, res.Reservations, 1)

	// Own listings carry full details.
	assert.Equal(t, "Team sync", res.Reservations[0].Title)
}

func TestReservationService_Get(t *testing.T) {
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)

	tests := []struct {
		name       string
		actor      string
		role       string
		wantPublic bool
	}{
		{name: "admin sees full record", actor: "root", role: constant.RoleAdmin},
		{name: "owner sees full record", actor: "alice", role: constant.RoleRequester},
		{name: "stranger sees busy label", actor: "bob", role: constant.RoleRequester, wantPublic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)

			m.repo.EXPECT().
				Get(gomock.Any(), gomock.Any()).
				Return(pendingReservation("res-1", "space-1", "alice", start, end), nil)

			res, err := svc.Get(authedCtx(tt.actor, tt.role), "res-1")

			assert.NoError(t, err)

			if tt.wantPublic {
				assert.Empty(t, res.Title)
				assert.Equal(t, "busy", res.Label)
			} else {
				assert.Equal(t, "Team sync", res.Title)
				assert.Empty(t, res.Label)
			}
		})
	}

	t.Run("not found", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(model.Reservation{}, nil)

		_, err := svc.Get(authedCtx("alice", constant.RoleRequester), "missing")

		assert.Error(t, err)
		assert.Equal(t, 404, failure.GetCode(err))
	})
}
