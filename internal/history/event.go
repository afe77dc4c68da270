package history

import (
	"time"

	"github.com/cozy-creator/medpredict/internal/db/models"
	"github.com/cozy-creator/medpredict/internal/diagnosis"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// PredictionEvent is published once per successful classification.
type PredictionEvent struct {
	ID        uuid.UUID         `msgpack:"id"`
	Disease   string            `msgpack:"disease"`
	Result    *diagnosis.Result `msgpack:"result"`
	ImageHash string            `msgpack:"image_hash"`
	ImageURL  string            `msgpack:"image_url,omitempty"`
	CreatedAt time.Time         `msgpack:"created_at"`
}

func (e *PredictionEvent) Marshal() ([]byte, error) {
	return msgpack.Marshal(e)
}

func UnmarshalEvent(data []byte) (*PredictionEvent, error) {
	var event PredictionEvent
	if err := msgpack.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (e *PredictionEvent) Model() *models.Prediction {
	p := &models.Prediction{
		ID:        e.ID,
		Disease:   e.Disease,
		ImageHash: e.ImageHash,
		ImageURL:  e.ImageURL,
		CreatedAt: e.CreatedAt.UTC(),
	}
	if e.Result != nil {
		p.Label = e.Result.Prediction
		p.IsDiseasePresent = e.Result.IsDiseasePresent
		p.Confidence = e.Result.Confidence
		p.Raw = e.Result.Raw
	}
	return p
}
