//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"atrium/config"
	"atrium/infras/jwt"
	"atrium/infras/kafka"
	"atrium/infras/otel"
	"atrium/infras/postgres"
	"atrium/infras/redis"
	"atrium/infras/s3"
	"atrium/permissions"
	"atrium/shared/cache"
	"atrium/shared/timezone"
	"atrium/transport/http"
	"atrium/transport/http/middleware"
	"atrium/transport/http/router"

	authService "atrium/internal/domains/auth/service"
	reservationRepository "atrium/internal/domains/reservation/repository"
	reservationService "atrium/internal/domains/reservation/service"
	spaceRepository "atrium/internal/domains/space/repository"
	spaceService "atrium/internal/domains/space/service"
	userRepository "atrium/internal/domains/user/repository"
	userService "atrium/internal/domains/user/service"

	authHandler "atrium/internal/handlers/auth"
	reservationHandler "atrium/internal/handlers/reservation"
	spaceHandler "atrium/internal/handlers/space"
	userHandler "atrium/internal/handlers/user"
)

var configurations = wire.NewSet(
	config.Get,
	permissions.Get,
)

var infrastructures = wire.NewSet(
	postgres.New,
	otel.New,
	redis.New,
	jwt.New,
	s3.New,
	kafka.New,
)

var middlewares = wire.NewSet(
	middleware.NewAppMiddleware,
	middleware.NewAuthRoleMiddleware,
)

var sharedHelpers = wire.NewSet(
	cache.NewRedisCache,
	timezone.NewClock,
)

var userDomain = wire.NewSet(
	userRepository.New,
	userService.New,
)

var authDomain = wire.NewSet(
	authService.New,
)

var spaceDomain = wire.NewSet(
	spaceRepository.New,
	spaceService.New,
)

var reservationDomain = wire.NewSet(
	reservationRepository.New,
	reservationService.New,
)

var domains = wire.NewSet(
	userDomain,
	authDomain,
	spaceDomain,
	reservationDomain,
)

var routing = wire.NewSet(
	wire.Struct(new(router.DomainHandlers), "*"),
	authHandler.New,
	userHandler.New,
	spaceHandler.New,
	reservationHandler.New,
	router.New,
)

func InitializeService() *http.HTTP {
	wire.Build(
		configurations,
		infrastructures,
		middlewares,
		sharedHelpers,
		domains,
		routing,
		http.New,
	)

	return &http.HTTP{}
}
