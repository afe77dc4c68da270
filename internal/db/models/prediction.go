package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Prediction is one recorded classification.
type Prediction struct {
	bun.BaseModel `bun:"table:predictions"`

	ID               uuid.UUID   `bun:",type:uuid,pk" json:"id"`
	Disease          string      `bun:",notnull" json:"disease"`
	Label            string      `bun:",notnull" json:"prediction"`
	IsDiseasePresent bool        `bun:",notnull" json:"is_disease_present"`
	Confidence       float64     `bun:",notnull" json:"confidence"`
	Raw              [][]float32 `bun:",notnull" json:"raw"`
	ImageHash        string      `bun:",notnull" json:"image_hash"`
	ImageURL         string      `bun:",nullzero" json:"image_url,omitempty"`
	CreatedAt        time.Time   `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}
