package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soapify/soapify-backend/internal/logger"
	"github.com/soapify/soapify-backend/internal/types"
)

// ErrNoteNotFound covers both an absent note and a note owned by a
// different doctor; callers must not be able to distinguish the two.
var ErrNoteNotFound = errors.New("soap note not found")

type SOAPNoteRepo interface {
	Create(ctx context.Context, tx *gorm.DB, notes []*types.SOAPNote) ([]*types.SOAPNote, error)
	GetByID(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) (*types.SOAPNote, error)
	// GetByIDForDoctor is the doctor-scoped lookup behind the status,
	// update and history endpoints.
	GetByIDForDoctor(ctx context.Context, tx *gorm.DB, noteID, doctorID uuid.UUID) (*types.SOAPNote, error)
	// MaxSequenceForDoctor returns 0 when the doctor has no notes yet.
	MaxSequenceForDoctor(ctx context.Context, tx *gorm.DB, doctorID uuid.UUID) (int, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, noteID uuid.UUID, fields map[string]any) error
	ListForDoctor(ctx context.Context, tx *gorm.DB, doctorID uuid.UUID) ([]*types.SOAPNote, error)
	ListForDoctorPatient(ctx context.Context, tx *gorm.DB, doctorID, patientID uuid.UUID) ([]*types.SOAPNote, error)
}

type soapNoteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSOAPNoteRepo(db *gorm.DB, baseLog *logger.Logger) SOAPNoteRepo {
	return &soapNoteRepo{db: db, log: baseLog.With("repo", "SOAPNoteRepo")}
}

func (snr *soapNoteRepo) Create(ctx context.Context, tx *gorm.DB, notes []*types.SOAPNote) ([]*types.SOAPNote, error) {
	transaction := tx
	if transaction == nil {
		transaction = snr.db
	}
	if len(notes) == 0 {
		return []*types.SOAPNote{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (snr *soapNoteRepo) GetByID(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) (*types.SOAPNote, error) {
	transaction := tx
	if transaction == nil {
		transaction = snr.db
	}
	var note types.SOAPNote
	err := transaction.WithContext(ctx).
		Preload("Transcript").
		Where("id = ?", noteID).
		First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (snr *soapNoteRepo) GetByIDForDoctor(ctx context.Context, tx *gorm.DB, noteID, doctorID uuid.UUID) (*types.SOAPNote, error) {
	transaction := tx
	if transaction == nil {
		transaction = snr.db
	}
	var note types.SOAPNote
	err := transaction.WithContext(ctx).
		Where("id = ? AND doctor_id = ?", noteID, doctorID).
		First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (snr *soapNoteRepo) MaxSequenceForDoctor(ctx context.Context, tx *gorm.DB, doctorID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = snr.db
	}
	var max *int
	err := transaction.WithContext(ctx).
		Model(&types.SOAPNote{}).
		Where("doctor_id = ?", doctorID).
		Select("MAX(doctor_soap_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (snr *soapNoteRepo) UpdateFields(ctx context.Context, tx *gorm.DB, noteID uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = snr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.SOAPNote{}).
		Where("id = ?", noteID).
		Updates(fields).Error
}

func (snr *soapNoteRepo) ListForDoctor(ctx context.Context, tx *gorm.DB, doctorID uuid.UUID) ([]*types.SOAPNote, error) {
	transaction := tx
	if transaction == nil {
		transaction = snr.db
	}
	var results []*types.SOAPNote
	if err := transaction.WithContext(ctx).
		Preload("Transcript").
		Preload("Transcript.Patient").
		Where("doctor_id = ?", doctorID).
		Order("doctor_soap_number DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (snr *soapNoteRepo) ListForDoctorPatient(ctx context.Context, tx *gorm.DB, doctorID, patientID uuid.UUID) ([]*types.SOAPNote, error) {
	transaction := tx
	if transaction == nil {
		transaction = snr.db
	}
	var results []*types.SOAPNote
	if err := transaction.WithContext(ctx).
		Joins("JOIN transcript ON transcript.id = soap_note.transcript_id").
		Where("soap_note.doctor_id = ? AND transcript.patient_id = ?", doctorID, patientID).
		Order("soap_note.doctor_soap_number DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
