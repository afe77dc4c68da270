package repository

import (
	"context"
	"fmt"

	"github.com/cozy-creator/medpredict/internal/db/models"
	"github.com/uptrace/bun"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type PredictionFilter struct {
	Disease string
	Limit   int
}

type IPredictionRepository interface {
	Repository[models.Prediction]
	WithTx(tx *bun.Tx) IPredictionRepository
	WithDB(db *bun.DB) IPredictionRepository
	List(ctx context.Context, filter PredictionFilter) ([]models.Prediction, error)
}

type PredictionRepository struct {
	db bun.IDB
}

func NewPredictionRepository(db *bun.DB) IPredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) Create(ctx context.Context, prediction *models.Prediction) (*models.Prediction, error) {
	if prediction == nil {
		return nil, fmt.Errorf("prediction model is nil")
	}

	if _, err := r.db.NewInsert().Model(prediction).Exec(ctx); err != nil {
		return nil, err
	}

	return prediction, nil
}

func (r *PredictionRepository) GetByID(ctx context.Context, id string) (*models.Prediction, error) {
	var prediction models.Prediction
	if err := r.db.NewSelect().Model(&prediction).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &prediction, nil
}

func (r *PredictionRepository) UpdateByID(ctx context.Context, id string, prediction *models.Prediction) (*models.Prediction, error) {
	if prediction == nil {
		return nil, fmt.Errorf("prediction model is nil")
	}

	if _, err := r.db.NewUpdate().Model(prediction).ExcludeColumn("id", "created_at").Where("id = ?", id).Exec(ctx); err != nil {
		return nil, err
	}

	return prediction, nil
}

func (r *PredictionRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model((*models.Prediction)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

// List returns the newest predictions first.
func (r *PredictionRepository) List(ctx context.Context, filter PredictionFilter) ([]models.Prediction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	predictions := make([]models.Prediction, 0)
	query := r.db.NewSelect().Model(&predictions).Order("created_at DESC").Limit(limit)
	if filter.Disease != "" {
		query = query.Where("disease = ?", filter.Disease)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	return predictions, nil
}

func (r *PredictionRepository) WithTx(tx *bun.Tx) IPredictionRepository {
	return &PredictionRepository{db: tx}
}

func (r *PredictionRepository) WithDB(db *bun.DB) IPredictionRepository {
	return &PredictionRepository{db: db}
}
