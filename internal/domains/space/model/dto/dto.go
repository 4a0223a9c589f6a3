package dto

import (
	"mime/multipart"

	"atrium/internal/domains/space/model"
	"atrium/shared"
	gDto "atrium/shared/dto"
	gModel "atrium/shared/model"
	"atrium/shared/timezone"

	"github.com/google/uuid"
)

type CreateSpaceRequest struct {
	Name        string                `json:"name"        validate:"required,max=100"`
	Description string                `json:"description" validate:"omitempty,max=500"`
	Location    string                `json:"location"    validate:"omitempty,max=100"`
	Capacity  int                   `json:"capacity" validate:"omitempty,min=0"`
	Image     *multipart.FileHeader `json:"image"    validate:"omitempty,mimetypes=image/png image/jpg image/jpeg,maxfilesize=1"`
	ImageFile multipart.File        `json:"-"`
	Active    *bool                 `json:"active"   validate:"omitempty"`
}

func (c *CreateSpaceRequest) ToModel(user string, imageURL string) model.Space {
	active := true
	if c.Active != nil {
		active = *c.Active
	}

	return model.Space{
		ID:          uuid.NewString(),
		Name:        c.Name,
		Description: c.Description,
		Location:    c.Location,
		Capacity:    c.Capacity,
		Image:       imageURL,
		Active:      active,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}
}

type UpdateSpaceRequest struct {
	Name        string                `db:"name"        json:"name"                                                              validate:"omitempty,max=100"`
	Description string                `db:"description" json:"description"                                                       validate:"omitempty,max=500"`
	Location    string                `db:"location"    json:"location"                                                          validate:"omitempty,max=100"`
	Capacity  *int                  `db:"capacity" json:"capacity"                                                             validate:"omitempty,min=0"`
	Image     *multipart.FileHeader `json:"image"  validate:"omitempty,mimetypes=image/png image/jpg image/jpeg,maxfilesize=1"`
	ImageFile multipart.File        `json:"-"`
	Active    *bool                 `db:"active"   json:"active"                                                               validate:"omitempty"`
}

type SpaceResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity"`
	Image       string `json:"image"`
	Active      bool   `json:"active"`
	gDto.Metadata
}

func (r *SpaceResponse) FromModel(model model.Space) {
	r.ID = model.ID
	r.Name = model.Name
	r.Description = model.Description
	r.Location = model.Location
	r.Capacity = model.Capacity
	r.Image = model.Image
	r.Active = model.Active
	r.Metadata.FromModel(model.Metadata)
}

type GetSpacesResponse struct {
	Spaces     []SpaceResponse `json:"spaces"`
	TotalPage int            `json:"total_page"`
	TotalData int            `json:"total_data"`
}

func (r *GetSpacesResponse) FromModels(models []model.Space, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Spaces = make([]SpaceResponse, len(models))
	for i, mod := range models {
		r.Spaces[i].FromModel(mod)
	}
}
