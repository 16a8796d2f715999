package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NoteStatusPending  = "PENDING"
	NoteStatusComplete = "COMPLETE"
	NoteStatusFailed   = "FAILED"
)

// SOAPNote is the generated artifact, 1:1 with its Transcript.
// DoctorSOAPNumber is the doctor-facing visit index ("SOAP #3"); uniqueness
// per doctor is enforced by the composite unique index so that concurrent
// submissions from the same doctor cannot share a number even though
// allocation and insert are separate statements.
type SOAPNote struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TranscriptID     uuid.UUID      `gorm:"uniqueIndex;not null;column:transcript_id" json:"transcript_id"`
	Transcript       *Transcript    `gorm:"constraint:OnDelete:CASCADE;foreignKey:TranscriptID;references:ID" json:"-"`
	DoctorID         uuid.UUID      `gorm:"index;not null;column:doctor_id;uniqueIndex:uq_doctor_soap_number,priority:1" json:"doctor_id"`
	Doctor           *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:DoctorID;references:ID" json:"-"`
	DoctorSOAPNumber int            `gorm:"not null;column:doctor_soap_number;uniqueIndex:uq_doctor_soap_number,priority:2" json:"doctor_soap_number"`
	Status           string         `gorm:"not null;default:PENDING;column:status" json:"status"`
	Content          string         `gorm:"column:content" json:"content"`
	Metadata         datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (SOAPNote) TableName() string {
	return "soap_note"
}

func (sn *SOAPNote) BeforeCreate(_ *gorm.DB) error {
	if sn.ID == uuid.Nil {
		sn.ID = uuid.New()
	}
	return nil
}
