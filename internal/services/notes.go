package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soapify/soapify-backend/internal/logger"
	"github.com/soapify/soapify-backend/internal/repos"
	"github.com/soapify/soapify-backend/internal/types"
)

// DashboardRow flattens a note with its patient for list views.
type DashboardRow struct {
	NoteID           uuid.UUID `json:"note_id"`
	DoctorSOAPNumber int       `json:"soap_number"`
	Status           string    `json:"status"`
	Content          string    `json:"content"`
	PatientID        uuid.UUID `json:"patient_id"`
	PatientName      string    `json:"patient_name"`
	PatientAge       int       `json:"patient_age"`
	PatientGender    string    `json:"patient_gender,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type NoteService interface {
	// GetStatus is the polling endpoint behind async generation.
	GetStatus(ctx context.Context, doctorID, noteID uuid.UUID) (*types.SOAPNote, error)
	UpdateContent(ctx context.Context, doctorID, noteID uuid.UUID, content string) (*types.SOAPNote, error)
	Dashboard(ctx context.Context, doctorID uuid.UUID) ([]DashboardRow, error)
	PatientHistory(ctx context.Context, doctorID, patientID uuid.UUID) ([]DashboardRow, error)
}

type noteService struct {
	db          *gorm.DB
	log         *logger.Logger
	noteRepo    repos.SOAPNoteRepo
	patientRepo repos.PatientRepo
}

func NewNoteService(db *gorm.DB, log *logger.Logger, noteRepo repos.SOAPNoteRepo, patientRepo repos.PatientRepo) NoteService {
	return &noteService{
		db:          db,
		log:         log.With("service", "NoteService"),
		noteRepo:    noteRepo,
		patientRepo: patientRepo,
	}
}

func (ns *noteService) GetStatus(ctx context.Context, doctorID, noteID uuid.UUID) (*types.SOAPNote, error) {
	return ns.noteRepo.GetByIDForDoctor(ctx, nil, noteID, doctorID)
}

// UpdateContent is the doctor's manual override. It replaces content
// only, in any status; the generation state machine is not consulted.
func (ns *noteService) UpdateContent(ctx context.Context, doctorID, noteID uuid.UUID, content string) (*types.SOAPNote, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content is required")
	}

	note, err := ns.noteRepo.GetByIDForDoctor(ctx, nil, noteID, doctorID)
	if err != nil {
		return nil, err
	}

	if err := ns.noteRepo.UpdateFields(ctx, nil, note.ID, map[string]any{
		"content": content,
	}); err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	return ns.noteRepo.GetByIDForDoctor(ctx, nil, noteID, doctorID)
}

func (ns *noteService) Dashboard(ctx context.Context, doctorID uuid.UUID) ([]DashboardRow, error) {
	notes, err := ns.noteRepo.ListForDoctor(ctx, nil, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	rows := make([]DashboardRow, 0, len(notes))
	for _, note := range notes {
		row := DashboardRow{
			NoteID:           note.ID,
			DoctorSOAPNumber: note.DoctorSOAPNumber,
			Status:           note.Status,
			Content:          note.Content,
			CreatedAt:        note.CreatedAt,
			UpdatedAt:        note.UpdatedAt,
		}
		if note.Transcript != nil {
			row.PatientID = note.Transcript.PatientID
			if note.Transcript.Patient != nil {
				row.PatientName = note.Transcript.Patient.Name
				row.PatientAge = note.Transcript.Patient.Age
				row.PatientGender = note.Transcript.Patient.Gender
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (ns *noteService) PatientHistory(ctx context.Context, doctorID, patientID uuid.UUID) ([]DashboardRow, error) {
	patients, err := ns.patientRepo.GetByIDs(ctx, nil, []uuid.UUID{patientID})
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	if len(patients) == 0 || patients[0].DoctorID != doctorID {
		return nil, repos.ErrPatientNotFound
	}
	patient := patients[0]

	notes, err := ns.noteRepo.ListForDoctorPatient(ctx, nil, doctorID, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient notes: %w", err)
	}
	rows := make([]DashboardRow, 0, len(notes))
	for _, note := range notes {
		rows = append(rows, DashboardRow{
			NoteID:           note.ID,
			DoctorSOAPNumber: note.DoctorSOAPNumber,
			Status:           note.Status,
			Content:          note.Content,
			PatientID:        patient.ID,
			PatientName:      patient.Name,
			PatientAge:       patient.Age,
			PatientGender:    patient.Gender,
			CreatedAt:        note.CreatedAt,
			UpdatedAt:        note.UpdatedAt,
		})
	}
	return rows, nil
}
