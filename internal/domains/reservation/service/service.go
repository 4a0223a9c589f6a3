package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"atrium/config"
	"atrium/infras/kafka"
	"atrium/infras/otel"
	"atrium/internal/domains/reservation/model"
	"atrium/internal/domains/reservation/model/dto"
	"atrium/internal/domains/reservation/repository"
	spaceModel "atrium/internal/domains/space/model"
	spaceRepo "atrium/internal/domains/space/repository"
	"atrium/shared"
	"atrium/shared/cache"
	"atrium/shared/constant"
	gDto "atrium/shared/dto"
	"atrium/shared/failure"
	"atrium/shared/timezone"
)

const (
	cacheGetReservation     = "reservation:get"
	cacheGetAllReservations = "reservation:gets"
	cacheCountReservations  = "reservation:count"
)

type Reservation interface {
	Create(ctx context.Context, req dto.CreateReservationRequest) (dto.ReservationResponse, error)
	GetAll(ctx context.Context, params gDto.QueryParams, query dto.RangeQuery) (dto.GetReservationsResponse, error)
	GetMine(ctx context.Context, params gDto.QueryParams, query dto.RangeQuery) (dto.GetReservationsResponse, error)
	Get(ctx context.Context, id string) (dto.ReservationResponse, error)
	Update(ctx context.Context, req dto.UpdateReservationRequest, id string) (dto.ReservationResponse, error)
	Approve(ctx context.Context, id string, req dto.DecisionRequest) (dto.ReservationResponse, error)
	Reject(ctx context.Context, id string, req dto.DecisionRequest) (dto.ReservationResponse, error)
	Cancel(ctx context.Context, id string) (dto.ReservationResponse, error)
}

type serviceImpl struct {
	repo      repository.Reservation
	spaceRepo spaceRepo.Space
	cfg       *config.Config
	cache     cache.RedisCache
	events    kafka.Client
	clock     timezone.Clock
	otel      otel.Otel
}

func New(repo repository.Reservation, spaceRepo spaceRepo.Space, cfg *config.Config, cache cache.RedisCache, events kafka.Client, clock timezone.Clock, otel otel.Otel) Reservation {
	return &serviceImpl{
		repo:      repo,
		spaceRepo: spaceRepo,
		cfg:       cfg,
		cache:     cache,
		events:    events,
		clock:     clock,
		otel:      otel,
	}
}

func (s *serviceImpl) Create(ctx context.Context, req dto.CreateReservationRequest) (res dto.ReservationResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Create")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	if err = s.checkSpaceBookable(ctx, req.SpaceID); err != nil {
		return res, err
	}

	reservation, err := req.ToModel(user, s.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to parse reservation request")

		return res, failure.BadRequestFromString(fmt.Sprintf("invalid datetime format: %v", err)) // nolint:wrapcheck
	}

	if err = s.checkWindow(reservation.Window()); err != nil {
		return res, err
	}

	// The overlap check and the insert run as one atomic unit under the
	// space lock. Two racing creates for the same space serialize here;
	// the loser sees the winner's row and fails with the overlap failure.
	err = s.withContentionRetry(ctx, func() error {
		return s.repo.WithSpaceLock(ctx, reservation.SpaceID, func(ctx context.Context, tx *sqlx.Tx) error {
			overlapping, err := s.repo.FindOverlappingTx(ctx, tx, reservation.SpaceID, reservation.StartAt, reservation.EndAt, constant.Empty)
			if err != nil {
				return err
			}

			if len(overlapping) > 0 {
				return failure.OverlapError
			}

			return s.repo.InsertTx(ctx, tx, reservation)
		})
	})
	if err != nil {
		return res, err
	}

	s.publishEvent(ctx, dto.EventReservationCreated, reservation, user)
	s.invalidateListCaches(ctx)

	res.FromModel(reservation)

	return res, nil
}

func (s *serviceImpl) GetAll(ctx context.Context, params gDto.QueryParams, query dto.RangeQuery) (res dto.GetReservationsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".GetAll")
	defer scope.End()
	defer scope.TraceIfError(err)

	role, _ := ctx.Value(constant.ContextKeyUserRole).(string)
	admin := role == constant.RoleAdmin

	start, end, err := s.rangeOrDefault(query)
	if err != nil {
		return res, err
	}

	filter := s.rangeFilter(query.SpaceID, start, end)
	if !admin {
		// Unprivileged viewers only see the occupied windows.
		filter.Filters = append(filter.Filters, gDto.Filter{
			Field:    model.FieldStatus,
			Operator: gDto.FilterOperatorIn,
			Value:    model.ActiveStatuses(),
			Table:    model.TableName,
		})
	}

	cacheKey := shared.BuildCacheKeyWithQuery(cacheGetAllReservations, params, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for reservations")

		return res, nil
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count reservations")

		return res, fmt.Errorf("failed to count reservations: %w", err)
	}

	models, err := s.repo.GetAll(ctx, params, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to get reservations")

		return res, fmt.Errorf("failed to get reservations: %w", err)
	}

	if admin {
		res.FromModels(models, total, params.Limit)
	} else {
		res.FromModelsPublic(models, total, params.Limit)
	}

	s.saveListCache(ctx, cacheKey, res)

	return res, nil
}

func (s *serviceImpl) GetMine(ctx context.Context, params gDto.QueryParams, query dto.RangeQuery) (res dto.GetReservationsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".GetMine")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	if user == constant.Empty {
		return res, failure.Unauthorized("unauthorized") // nolint:wrapcheck
	}

	start, end, err := s.rangeOrDefault(query)
	if err != nil {
		return res, err
	}

	filter := s.rangeFilter(query.SpaceID, start, end)
	filter.Filters = append(filter.Filters, gDto.Filter{
		Field:    model.FieldCreatedBy,
		Operator: gDto.FilterOperatorEq,
		Value:    user,
		Table:    model.TableName,
	})

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count reservations")

		return res, fmt.Errorf("failed to count reservations: %w", err)
	}

	models, err := s.repo.GetAll(ctx, params, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to get own reservations")

		return res, fmt.Errorf("failed to get own reservations: %w", err)
	}

	res.FromModels(models, total, params.Limit)

	return res, nil
}

func (s *serviceImpl) Get(ctx context.Context, id string) (res dto.ReservationResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Get")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	role, _ := ctx.Value(constant.ContextKeyUserRole).(string)

	reservation, err := s.loadReservation(ctx, id)
	if err != nil {
		return res, err
	}

	if role == constant.RoleAdmin || reservation.OwnedBy(user) {
		res.FromModel(reservation)
	} else {
		res.FromModelPublic(reservation)
	}

	return res, nil
}

func (s *serviceImpl) Update(ctx context.Context, req dto.UpdateReservationRequest, id string) (res dto.ReservationResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Update")
	defer scope.End()
	defer scope.TraceIfError(err)

	if req == (dto.UpdateReservationRequest{}) {
		return res, failure.BadRequestFromString("update request cannot be empty") // nolint:wrapcheck
	}

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	role, _ := ctx.Value(constant.ContextKeyUserRole).(string)
	admin := role == constant.RoleAdmin

	current, err := s.loadReservation(ctx, id)
	if err != nil {
		return res, err
	}

	if !admin && !current.OwnedBy(user) {
		return res, failure.ForbiddenError // nolint:wrapcheck
	}

	if _, err = current.Status.Next(model.ActionEdit); err != nil {
		return res, err
	}

	// Requesters may only touch their reservation while it is still pending;
	// an approved one is the admin's to change.
	if !admin && current.Status != model.StatusPending {
		return res, failure.InvalidTransitionError // nolint:wrapcheck
	}

	newWindow, err := s.windowFromUpdate(req, current)
	if err != nil {
		return res, err
	}

	newSpaceID := current.SpaceID
	if req.SpaceID != constant.Empty {
		newSpaceID = req.SpaceID
	}

	// Moving a reservation to another space is treated exactly like a
	// window change: the overlap check runs again, against the new space.
	windowChanged := !newWindow.Equal(current.Window()) || newSpaceID != current.SpaceID

	updatedFields := shared.TransformFields(req, user, s.clock.Now())

	if windowChanged {
		if err = s.checkWindow(newWindow); err != nil {
			return res, err
		}

		if newSpaceID != current.SpaceID {
			if err = s.checkSpaceBookable(ctx, newSpaceID); err != nil {
				return res, err
			}

			updatedFields[model.FieldSpaceID] = newSpaceID
		}

		updatedFields[model.FieldStartAt] = newWindow.StartAt
		updatedFields[model.FieldEndAt] = newWindow.EndAt

		err = s.withContentionRetry(ctx, func() error {
			return s.repo.WithSpaceLock(ctx, newSpaceID, func(ctx context.Context, tx *sqlx.Tx) error {
				overlapping, err := s.repo.FindOverlappingTx(ctx, tx, newSpaceID, newWindow.StartAt, newWindow.EndAt, current.ID)
				if err != nil {
					return err
				}

				if len(overlapping) > 0 {
					return failure.OverlapError
				}

				return s.repo.UpdateTx(ctx, tx, updatedFields, shared.FilterByID(id, model.FieldID, model.TableName))
			})
		})
	} else {
		err = s.repo.Update(ctx, updatedFields, shared.FilterByID(id, model.FieldID, model.TableName))
	}

	if err != nil {
		return res, err
	}

	updated, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to reload reservation")

		return res, fmt.Errorf("failed to reload reservation: %w", err)
	}

	s.publishEvent(ctx, dto.EventReservationUpdated, updated, user)
	s.invalidateReservationCaches(ctx, id)

	res.FromModel(updated)

	return res, nil
}

func (s *serviceImpl) Approve(ctx context.Context, id string, req dto.DecisionRequest) (dto.ReservationResponse, error) {
	return s.decide(ctx, id, model.ActionApprove, req.Note)
}

func (s *serviceImpl) Reject(ctx context.Context, id string, req dto.DecisionRequest) (dto.ReservationResponse, error) {
	return s.decide(ctx, id, model.ActionReject, req.Note)
}

// decide applies an admin approve/reject. Both require PENDING, which makes
// the decision fields write-once: once decided, the state machine refuses a
// second decision.
func (s *serviceImpl) decide(ctx context.Context, id string, action model.Action, note string) (res dto.ReservationResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+"."+string(action))
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	role, _ := ctx.Value(constant.ContextKeyUserRole).(string)

	if role != constant.RoleAdmin {
		return res, failure.ForbiddenError // nolint:wrapcheck
	}

	reservation, err := s.loadReservation(ctx, id)
	if err != nil {
		return res, err
	}

	next, err := reservation.Status.Next(action)
	if err != nil {
		return res, err
	}

	now := s.clock.Now()
	updatedFields := map[string]any{
		model.FieldStatus:        string(next),
		model.FieldApprovedBy:    user,
		model.FieldDecisionAt:    now,
		constant.FieldModifiedAt: now,
		constant.FieldModifiedBy: user,
	}

	if note != constant.Empty {
		updatedFields[model.FieldDecisionNote] = note
	}

	// Guarded write: the row must still be PENDING at the moment of the
	// update, or a concurrent cancel/decision won the race and this one
	// must not resurrect the reservation.
	applied, err := s.repo.UpdateIfStatus(ctx, id, updatedFields, []model.Status{model.StatusPending})
	if err != nil {
		log.Error().Err(err).Msg("failed to apply reservation decision")

		return res, fmt.Errorf("failed to apply reservation decision: %w", err)
	}

	if !applied {
		return res, failure.InvalidTransitionError // nolint:wrapcheck
	}

	reservation.Status = next
	reservation.ApprovedBy = &user
	reservation.DecisionAt = &now

	if note != constant.Empty {
		reservation.DecisionNote = &note
	}

	reservation.ModifiedAt = now
	reservation.ModifiedBy = user

	eventType := dto.EventReservationApproved
	if action == model.ActionReject {
		eventType = dto.EventReservationRejected
	}

	s.publishEvent(ctx, eventType, reservation, user)
	s.invalidateReservationCaches(ctx, id)

	res.FromModel(reservation)

	return res, nil
}

func (s *serviceImpl) Cancel(ctx context.Context, id string) (res dto.ReservationResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Cancel")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	role, _ := ctx.Value(constant.ContextKeyUserRole).(string)

	reservation, err := s.loadReservation(ctx, id)
	if err != nil {
		return res, err
	}

	if role != constant.RoleAdmin && !reservation.OwnedBy(user) {
		return res, failure.ForbiddenError // nolint:wrapcheck
	}

	next, err := reservation.Status.Next(model.ActionCancel)
	if err != nil {
		return res, err
	}

	now := s.clock.Now()
	updatedFields := map[string]any{
		model.FieldStatus:        string(next),
		constant.FieldModifiedAt: now,
		constant.FieldModifiedBy: user,
	}

	applied, err := s.repo.UpdateIfStatus(ctx, id, updatedFields, []model.Status{model.StatusPending, model.StatusApproved})
	if err != nil {
		log.Error().Err(err).Msg("failed to cancel reservation")

		return res, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	if !applied {
		return res, failure.InvalidTransitionError // nolint:wrapcheck
	}

	reservation.Status = next
	reservation.ModifiedAt = now
	reservation.ModifiedBy = user

	s.publishEvent(ctx, dto.EventReservationCancelled, reservation, user)
	s.invalidateReservationCaches(ctx, id)

	res.FromModel(reservation)

	return res, nil
}

func (s *serviceImpl) loadReservation(ctx context.Context, id string) (model.Reservation, error) {
	reservation, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get reservation")

		return reservation, fmt.Errorf("failed to get reservation: %w", err)
	}

	if reservation.ID == constant.Empty {
		return reservation, failure.NotFound("reservation not found") // nolint:wrapcheck
	}

	return reservation, nil
}

func (s *serviceImpl) checkSpaceBookable(ctx context.Context, spaceID string) error {
	space, err := s.spaceRepo.Get(ctx, shared.FilterByID(spaceID, spaceModel.FieldID, spaceModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to check if space exists")

		return fmt.Errorf("failed to check if space exists: %w", err)
	}

	if space.ID == constant.Empty {
		return failure.NotFound("space not found") // nolint:wrapcheck
	}

	if !space.Active {
		return failure.BadRequestFromString("space is not available for booking") // nolint:wrapcheck
	}

	return nil
}

// checkWindow enforces ordering plus the configured duration and advance
// policies. Policy knobs set to zero are disabled.
func (s *serviceImpl) checkWindow(window model.Window) error {
	if err := window.Validate(); err != nil {
		return err
	}

	policy := s.cfg.Reservation

	if policy.MinDurationMinutes > 0 && window.Duration() < time.Duration(policy.MinDurationMinutes)*time.Minute {
		return failure.BadRequestFromString(fmt.Sprintf("reservation must last at least %d minutes", policy.MinDurationMinutes)) // nolint:wrapcheck
	}

	if policy.MaxDurationMinutes > 0 && window.Duration() > time.Duration(policy.MaxDurationMinutes)*time.Minute {
		return failure.BadRequestFromString(fmt.Sprintf("reservation may last at most %d minutes", policy.MaxDurationMinutes)) // nolint:wrapcheck
	}

	if policy.MaxAdvanceDays > 0 {
		horizon := s.clock.Now().AddDate(0, 0, policy.MaxAdvanceDays)
		if window.StartAt.After(horizon) {
			return failure.BadRequestFromString(fmt.Sprintf("reservation may start at most %d days ahead", policy.MaxAdvanceDays)) // nolint:wrapcheck
		}
	}

	return nil
}

func (s *serviceImpl) windowFromUpdate(req dto.UpdateReservationRequest, current model.Reservation) (model.Window, error) {
	window := current.Window()

	if req.StartAt != constant.Empty {
		startAt, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			return window, failure.BadRequestFromString(fmt.Sprintf("invalid datetime format: %v", err)) // nolint:wrapcheck
		}

		window.StartAt = startAt
	}

	if req.EndAt != constant.Empty {
		endAt, err := time.Parse(time.RFC3339, req.EndAt)
		if err != nil {
			return window, failure.BadRequestFromString(fmt.Sprintf("invalid datetime format: %v", err)) // nolint:wrapcheck
		}

		window.EndAt = endAt
	}

	return window, nil
}

func (s *serviceImpl) rangeOrDefault(query dto.RangeQuery) (time.Time, time.Time, error) {
	now := s.clock.Now()

	windowDays := s.cfg.Reservation.QueryWindowDays
	if windowDays <= 0 {
		windowDays = 30
	}

	start := now
	if query.Start != nil {
		start = *query.Start
	}

	end := now.AddDate(0, 0, windowDays)
	if query.End != nil {
		end = *query.End
	}

	if !start.Before(end) {
		return start, end, failure.InvalidWindowError // nolint:wrapcheck
	}

	return start, end, nil
}

func (s *serviceImpl) rangeFilter(spaceID string, start, end time.Time) gDto.FilterGroup {
	filters := []any{
		gDto.Filter{
			ArgName:  "range_end",
			Field:    model.FieldStartAt,
			Operator: gDto.FilterOperatorLess,
			Value:    end,
			Table:    model.TableName,
		},
		gDto.Filter{
			ArgName:  "range_start",
			Field:    model.FieldEndAt,
			Operator: gDto.FilterOperatorGreater,
			Value:    start,
			Table:    model.TableName,
		},
	}

	if spaceID != constant.Empty {
		filters = append(filters, gDto.Filter{
			Field:    model.FieldSpaceID,
			Operator: gDto.FilterOperatorEq,
			Value:    spaceID,
			Table:    model.TableName,
		})
	}

	return gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters:  filters,
	}
}

// withContentionRetry re-runs the critical section a bounded number of times
// when postgres reports transient contention, then surfaces a generic
// conflict. Domain failures pass through untouched.
func (s *serviceImpl) withContentionRetry(ctx context.Context, fn func() error) error {
	attempts := s.cfg.Reservation.WriteRetries
	if attempts <= 0 {
		attempts = 3
	}

	var err error

	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}

		log.Warn().Err(err).Int("attempt", i+1).Msg("transient contention on reservation write, retrying")
	}

	return failure.Conflict("could not complete the booking due to concurrent activity, please retry") // nolint:wrapcheck
}

func isTransient(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	code := string(pqErr.Code)

	return code == constant.PqErrorCodeSerializationFail ||
		code == constant.PqErrorCodeDeadlockDetected ||
		code == constant.PqErrorCodeLockNotAvailable
}

func (s *serviceImpl) publishEvent(ctx context.Context, eventType string, reservation model.Reservation, actor string) {
	event := dto.NewReservationEvent(eventType, reservation, actor, s.clock.Now())

	go func() {
		c := context.WithoutCancel(ctx)

		topic := s.cfg.Kafka.Topics.ReservationEvents
		if err := s.events.SendMessages(c, topic, kafka.Message{Key: reservation.ID, Value: event}); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("failed to publish reservation event")
		}
	}()
}

func (s *serviceImpl) invalidateListCaches(ctx context.Context) {
	go func() {
		c := context.WithoutCancel(ctx)

		shared.InvalidateCaches(c, s.cache, cacheGetAllReservations)
		shared.InvalidateCaches(c, s.cache, cacheCountReservations)
	}()
}

func (s *serviceImpl) invalidateReservationCaches(ctx context.Context, id string) {
	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Delete(c, shared.BuildCacheKey(cacheGetReservation, id)); err != nil {
			log.Error().Err(err).Msg("failed to delete reservation from cache")
		}

		shared.InvalidateCaches(c, s.cache, cacheGetAllReservations)
		shared.InvalidateCaches(c, s.cache, cacheCountReservations)
	}()
}

func (s *serviceImpl) saveListCache(ctx context.Context, cacheKey string, res dto.GetReservationsResponse) {
	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save reservations to cache")
		}
	}()
}
