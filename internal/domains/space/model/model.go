package model

import "atrium/shared/model"

const (
	TableName  = "spaces"
	EntityName = "space"

	FieldID          = "id"
	FieldName        = "name"
	FieldDescription = "description"
	FieldLocation    = "location"
	FieldCapacity    = "capacity"
	FieldImage       = "image"
	FieldActive      = "active"
)

type Space struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Location    string `db:"location"`
	Capacity    int    `db:"capacity"`
	Image       string `db:"image"`
	Active      bool   `db:"active"`
	model.Metadata
}
