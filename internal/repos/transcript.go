package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soapify/soapify-backend/internal/logger"
	"github.com/soapify/soapify-backend/internal/types"
)

type TranscriptRepo interface {
	Create(ctx context.Context, tx *gorm.DB, transcripts []*types.Transcript) ([]*types.Transcript, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, transcriptIDs []uuid.UUID) ([]*types.Transcript, error)
}

type transcriptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTranscriptRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptRepo {
	return &transcriptRepo{db: db, log: baseLog.With("repo", "TranscriptRepo")}
}

func (tr *transcriptRepo) Create(ctx context.Context, tx *gorm.DB, transcripts []*types.Transcript) ([]*types.Transcript, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	if len(transcripts) == 0 {
		return []*types.Transcript{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&transcripts).Error; err != nil {
		return nil, err
	}
	return transcripts, nil
}

func (tr *transcriptRepo) GetByIDs(ctx context.Context, tx *gorm.DB, transcriptIDs []uuid.UUID) ([]*types.Transcript, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}
	var results []*types.Transcript
	if len(transcriptIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", transcriptIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
