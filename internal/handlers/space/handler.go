package space

import (
	"net/http"
	"atrium/infras/otel"
	"atrium/internal/domains/space/model"
	"atrium/internal/domains/space/model/dto"
	"atrium/internal/domains/space/service"
	"atrium/shared"
	"atrium/shared/constant"
	gDto "atrium/shared/dto"
	"atrium/shared/validator"
	"atrium/transport/http/response"

	"github.com/go-chi/chi/v5"

	"github.com/rs/zerolog/log"
)

type Handler struct {
	service service.Space
	otel    otel.Otel
}

func New(service service.Space, otel otel.Otel) Handler {
	return Handler{
		service: service,
		otel:    otel,
	}
}

func (handler *Handler) Router(router chi.Router) {
	router.Route("/spaces", func(routerGroup chi.Router) {
		routerGroup.Post("/", handler.CreateSpace)
		routerGroup.Get("/", handler.GetSpaces)
		routerGroup.Get("/{id}", handler.GetSpaceByID)
		routerGroup.Patch("/{id}", handler.UpdateSpace)
		routerGroup.Delete("/{id}", handler.DeleteSpace)
	})
}

// CreateSpace handles the creation of a new space.
// @Summary Create a new space
// @Description Create a new space with the provided details.
// @Tags Space
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Space name"
// @Param location formData string false "Space location"
// @Param capacity formData integer false "Space capacity"
// @Param active formData boolean false "Space active status"
// @Param image formData file false "Space image"
// @Success 201 {object} response.Message "Space created successfully"
// @Failure 400 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/spaces [post]
// @Security BearerAuth
func (handler *Handler) CreateSpace(writer http.ResponseWriter, request *http.Request) {
	ctx, scope := handler.otel.NewScope(request.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".CreateSpace")
	defer scope.End()

	if err := request.ParseMultipartForm(constant.RequestMaxMemory); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to parse multipart form")
		response.WithError(writer, err)

		return
	}

	req := dto.CreateSpaceRequest{
		Name:        request.FormValue("name"),
		Description: request.FormValue("description"),
		Location:    request.FormValue("location"),
	}

	if capStr := request.FormValue("capacity"); capStr != "" {
		if c, err := shared.ConvertStringToInt(capStr); err == nil {
			req.Capacity = c
		}
	}

	if activeStr := request.FormValue("active"); activeStr != "" {
		req.Active = shared.ConvertStringToBool(activeStr)
	}

	file, fileHeader, err := request.FormFile("image")
	if err == nil {
		req.Image = fileHeader
		req.ImageFile = file

		defer file.Close()
	}

	if err := validator.ValidateStruct(&req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request")

		response.WithError(writer, err)

		return
	}

	if err := handler.service.Create(ctx, req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to create space")

		response.WithError(writer, err)

		return
	}

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	scope.AddEvent("Space created successfully by user " + user)

	response.WithMessage(writer, http.StatusCreated, "Space created successfully")
}

// GetSpaces retrieves all space items based on query parameters.
// @Summary Get all spaces
// @Description Retrieve all spaces with optional filtering and pagination.
// @Tags Space
// @Accept json
// @Produce json
// @Param pagination query gDto.QueryParams false "Pagination parameters"
// @Param name query string false "Filter by name"
// @Param location query string false "Filter by location"
// @Param active query boolean false "Filter by active status"
// @Success 200 {object} response.Data[dto.SpaceResponse] "List of spaces"
// @Failure 400 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/spaces [get]
func (handler *Handler) GetSpaces(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetSpaces")
	defer scope.End()

	queryParams := gDto.QueryParams{}
	queryParams.FromRequest(r, true)

	name := r.URL.Query().Get(model.FieldName)
	location := r.URL.Query().Get(model.FieldLocation)

	filterGroup := gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldName,
				Operator: gDto.FilterOperatorLike,
				Value:    name,
				Table:    model.TableName,
			},
			gDto.Filter{
				Field:    model.FieldLocation,
				Operator: gDto.FilterOperatorLike,
				Value:    location,
				Table:    model.TableName,
			},
		},
	}

	if active := shared.ConvertStringToBool(r.URL.Query().Get(model.FieldActive)); active != nil {
		filterGroup.Filters = append(filterGroup.Filters, gDto.Filter{
			Field:    model.FieldActive,
			Operator: gDto.FilterOperatorEq,
			Value:    *active,
			Table:    model.TableName,
		})
	}

	spaces, err := handler.service.GetAll(ctx, queryParams, filterGroup)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get spaces")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Spaces retrieved successfully")

	response.WithJSON(w, http.StatusOK, spaces)
}

// GetSpaceByID retrieves a space by its ID.
// @Summary Get a space by ID
// @Description Retrieve a space by its unique identifier.
// @Tags Space
// @Accept json
// @Produce json
// @Param id path string true "Space ID"
// @Success 200 {object} response.Data[dto.SpaceResponse] "Space details"
// @Failure 400 {object} response.Error
// @Failure 404 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/spaces/{id} [get]
func (handler *Handler) GetSpaceByID(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetSpaceByID")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	space, err := handler.service.Get(ctx, id)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get space by ID")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Space retrieved successfully")

	response.WithJSON(w, http.StatusOK, space)
}

// UpdateSpace updates an existing space by its ID.
// @Summary Update a space by ID
// @Description Update the details of an existing space.
// @Tags Space
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Space ID"
// @Param name formData string false "Space name"
// @Param location formData string false "Space location"
// @Param capacity formData integer false "Space capacity"
// @Param active formData boolean false "Space active status"
// @Param image formData file false "Space image"
// @Success 200 {object} response.Message "Space updated successfully"
// @Failure 400 {object} response.Error
// @Failure 404 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/spaces/{id} [patch]
// @Security BearerAuth
func (handler *Handler) UpdateSpace(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".UpdateSpace")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	if err := r.ParseMultipartForm(constant.RequestMaxMemory); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to parse multipart form")
		response.WithError(w, err)

		return
	}

	req := dto.UpdateSpaceRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
	}

	if capStr := r.FormValue("capacity"); capStr != "" {
		if c, err := shared.ConvertStringToInt(capStr); err == nil {
			req.Capacity = &c
		}
	}

	if activeStr := r.FormValue("active"); activeStr != "" {
		req.Active = shared.ConvertStringToBool(activeStr)
	}

	file, fileHeader, err := r.FormFile("image")
	if err == nil {
		req.Image = fileHeader
		req.ImageFile = file

		defer file.Close()
	}

	if err := validator.ValidateStruct(&req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request")

		response.WithError(w, err)

		return
	}

	if err := handler.service.Update(ctx, req, id); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to update space")

		response.WithError(w, err)

		return
	}

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	scope.AddEvent("Space updated successfully by user " + user)

	response.WithMessage(w, http.StatusOK, "Space updated successfully")
}

// DeleteSpace deletes a space by its ID.
// @Summary Delete a space by ID
// @Description Delete a space using its unique identifier.
// @Tags Space
// @Accept json
// @Produce json
// @Param id path string true "Space ID"
// @Success 200 {object} response.Message "Space deleted successfully"
// @Failure 400 {object} response.Error
// @Failure 404 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/spaces/{id} [delete]
// @Security BearerAuth
func (handler *Handler) DeleteSpace(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".DeleteSpace")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	if err := handler.service.Delete(ctx, id); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to delete space")

		response.WithError(w, err)

		return
	}

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	scope.AddEvent("Space deleted successfully by user " + user)

	response.WithMessage(w, http.StatusOK, "Space deleted successfully")
}
