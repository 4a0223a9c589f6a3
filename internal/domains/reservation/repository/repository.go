package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"atrium/infras/otel"
	"atrium/infras/postgres"
	"atrium/internal/domains/reservation/model"
	"atrium/shared/constant"
	gDto "atrium/shared/dto"
	"atrium/shared/logger"
	gRepo "atrium/shared/repository"
)

type Reservation interface {
	Insert(ctx context.Context, model model.Reservation) error
	InsertTx(ctx context.Context, tx *sqlx.Tx, model model.Reservation) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Reservation, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.Reservation, error)
	Exist(ctx context.Context, filter gDto.FilterGroup) (bool, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	Update(ctx context.Context, req map[string]any, filter gDto.FilterGroup) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, req map[string]any, filter gDto.FilterGroup) error
	Delete(ctx context.Context, filter gDto.FilterGroup) error

	FindOverlapping(ctx context.Context, spaceID string, start, end time.Time, excludeID string) ([]model.Reservation, error)
	FindOverlappingTx(ctx context.Context, tx *sqlx.Tx, spaceID string, start, end time.Time, excludeID string) ([]model.Reservation, error)
	WithSpaceLock(ctx context.Context, spaceID string, fn func(ctx context.Context, tx *sqlx.Tx) error) error
	UpdateIfStatus(ctx context.Context, id string, req map[string]any, from []model.Status) (bool, error)
}

type repositoryImpl struct {
	gRepo.Repository[model.Reservation]
	db   *postgres.Connection
	otel otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Reservation {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.Reservation](model.EntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
}

// OverlapFilter matches every active reservation on the space whose window
// intersects the half-open interval [start, end). Rows merely touching a
// boundary do not match: back-to-back bookings are always allowed.
func OverlapFilter(spaceID string, start, end time.Time, excludeID string) gDto.FilterGroup {
	filters := []any{
		gDto.Filter{
			Field:    model.FieldSpaceID,
			Operator: gDto.FilterOperatorEq,
			Value:    spaceID,
			Table:    model.TableName,
		},
		gDto.Filter{
			Field:    model.FieldStatus,
			Operator: gDto.FilterOperatorIn,
			Value:    model.ActiveStatuses(),
			Table:    model.TableName,
		},
		gDto.Filter{
			ArgName:  "window_end",
			Field:    model.FieldStartAt,
			Operator: gDto.FilterOperatorLess,
			Value:    end,
			Table:    model.TableName,
		},
		gDto.Filter{
			ArgName:  "window_start",
			Field:    model.FieldEndAt,
			Operator: gDto.FilterOperatorGreater,
			Value:    start,
			Table:    model.TableName,
		},
	}

	if excludeID != constant.Empty {
		filters = append(filters, gDto.Filter{
			ArgName:  "exclude_id",
			Field:    model.FieldID,
			Operator: gDto.FilterOperatorNotEq,
			Value:    excludeID,
			Table:    model.TableName,
		})
	}

	return gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters:  filters,
	}
}

// StatusGuardFilter matches the reservation only while it still holds one of
// the given statuses.
func StatusGuardFilter(id string, from []model.Status) gDto.FilterGroup {
	statuses := make([]string, 0, len(from))
	for _, status := range from {
		statuses = append(statuses, string(status))
	}

	return gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldID,
				Operator: gDto.FilterOperatorEq,
				Value:    id,
				Table:    model.TableName,
			},
			gDto.Filter{
				Field:    model.FieldStatus,
				Operator: gDto.FilterOperatorIn,
				Value:    statuses,
				Table:    model.TableName,
			},
		},
	}
}

// UpdateIfStatus applies the update only while the reservation still holds one
// of the from statuses. The guard and the write are a single statement, so a
// concurrent transition cannot slip in between the status check and the
// persist. It reports whether a row was written.
func (repo *repositoryImpl) UpdateIfStatus(ctx context.Context, id string, req map[string]any, from []model.Status) (bool, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+"."+model.EntityName+".UpdateIfStatus")
	defer scope.End()

	where, args := repo.BuildWhereClause(ctx, StatusGuardFilter(id, from))

	set := make([]string, 0, len(req))
	for col := range maps.Keys(req) {
		set = append(set, fmt.Sprintf("%s = :%s", col, col))
	}

	query := fmt.Sprintf("UPDATE %s SET %s %s", model.TableName, strings.Join(set, ", "), where)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)
	maps.Copy(args, req)

	result, err := repo.db.Write.NamedExecContext(ctx, query, args)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to update reservation status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		logger.ErrorWithStack(err)

		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func (repo *repositoryImpl) FindOverlapping(ctx context.Context, spaceID string, start, end time.Time, excludeID string) ([]model.Reservation, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+"."+model.EntityName+".FindOverlapping")
	defer scope.End()

	return repo.GetAll(ctx, gDto.QueryParams{}, OverlapFilter(spaceID, start, end, excludeID)) //nolint:wrapcheck
}

func (repo *repositoryImpl) FindOverlappingTx(ctx context.Context, tx *sqlx.Tx, spaceID string, start, end time.Time, excludeID string) ([]model.Reservation, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+"."+model.EntityName+".FindOverlappingTx")
	defer scope.End()

	filter := OverlapFilter(spaceID, start, end, excludeID)
	where, args := repo.BuildWhereClause(ctx, filter)

	query := fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(reservationColumns(), ", "), model.TableName, where)
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	var models []model.Reservation

	prepare, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return models, fmt.Errorf("failed to prepare statement (%s): %w", model.EntityName, err)
	}
	defer prepare.Close()

	err = prepare.SelectContext(ctx, &models, args)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return models, fmt.Errorf("failed to find overlapping reservations: %w", err)
	}

	return models, nil
}

// WithSpaceLock runs fn inside a write transaction holding an advisory lock
// derived from the space id. Writers for the same space serialize on the
// lock; writers for different spaces proceed fully concurrently. The lock is
// released with the transaction, so hold time is bounded to the single
// check-and-persist step.
func (repo *repositoryImpl) WithSpaceLock(ctx context.Context, spaceID string, fn func(ctx context.Context, tx *sqlx.Tx) error) (err error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+"."+model.EntityName+".WithSpaceLock")
	defer scope.End()
	defer scope.TraceIfError(err)

	tx, err := repo.db.Write.BeginTxx(ctx, nil)
	if err != nil {
		logger.ErrorWithStack(err)

		return fmt.Errorf("failed to begin transaction (%s): %w", model.EntityName, err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.ErrorWithStack(rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", spaceID); err != nil {
		logger.ErrorWithStack(err)

		return fmt.Errorf("failed to acquire space lock (%s): %w", spaceID, err)
	}

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		logger.ErrorWithStack(err)

		return fmt.Errorf("failed to commit transaction (%s): %w", model.EntityName, err)
	}

	return nil
}

func reservationColumns() []string {
	return []string{
		model.FieldID,
		model.FieldSpaceID,
		model.FieldTitle,
		model.FieldDescription,
		model.FieldStartAt,
		model.FieldEndAt,
		model.FieldStatus,
		model.FieldApprovedBy,
		model.FieldDecisionAt,
		model.FieldDecisionNote,
		constant.FieldCreatedAt,
		constant.FieldCreatedBy,
		constant.FieldModifiedAt,
		constant.FieldModifiedBy,
	}
}
