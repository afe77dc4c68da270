package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type APIKey struct {
	bun.BaseModel `bun:"table:api_keys"`

	ID        uuid.UUID `bun:",type:uuid,pk" json:"id"`
	KeyHash   string    `bun:",notnull,unique" json:"-"`
	KeyMask   string    `bun:",notnull" json:"key_mask"`
	IsRevoked bool      `bun:",notnull,default:false" json:"is_revoked"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func NewAPIKey(keyHash, keyMask string) *APIKey {
	return &APIKey{
		ID:        uuid.Must(uuid.NewRandom()),
		KeyHash:   keyHash,
		KeyMask:   keyMask,
		CreatedAt: time.Now().UTC(),
	}
}
