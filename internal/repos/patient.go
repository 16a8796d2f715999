package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soapify/soapify-backend/internal/logger"
	"github.com/soapify/soapify-backend/internal/types"
)

// ErrPatientNotFound covers both an absent patient and a patient owned
// by a different doctor; callers must not be able to distinguish the two.
var ErrPatientNotFound = errors.New("patient not found")

type PatientRepo interface {
	Create(ctx context.Context, tx *gorm.DB, patients []*types.Patient) ([]*types.Patient, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, patientIDs []uuid.UUID) ([]*types.Patient, error)
	// GetByIdentity resolves the heuristic (doctor, name, age) identity.
	// Returns nil when no patient matches.
	GetByIdentity(ctx context.Context, tx *gorm.DB, doctorID uuid.UUID, name string, age int) (*types.Patient, error)
}

type patientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPatientRepo(db *gorm.DB, baseLog *logger.Logger) PatientRepo {
	return &patientRepo{db: db, log: baseLog.With("repo", "PatientRepo")}
}

func (pr *patientRepo) Create(ctx context.Context, tx *gorm.DB, patients []*types.Patient) ([]*types.Patient, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if len(patients) == 0 {
		return []*types.Patient{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&patients).Error; err != nil {
		return nil, err
	}
	return patients, nil
}

func (pr *patientRepo) GetByIDs(ctx context.Context, tx *gorm.DB, patientIDs []uuid.UUID) ([]*types.Patient, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var results []*types.Patient
	if len(patientIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", patientIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *patientRepo) GetByIdentity(ctx context.Context, tx *gorm.DB, doctorID uuid.UUID, name string, age int) (*types.Patient, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var patient types.Patient
	err := transaction.WithContext(ctx).
		Where("doctor_id = ? AND name = ? AND age = ?", doctorID, name, age).
		First(&patient).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &patient, nil
}
