package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transcript holds the sanitized visit text. Immutable after creation.
type Transcript struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DoctorID  uuid.UUID `gorm:"index;not null;column:doctor_id" json:"doctor_id"`
	Doctor    *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:DoctorID;references:ID" json:"-"`
	PatientID uuid.UUID `gorm:"index;not null;column:patient_id" json:"patient_id"`
	Patient   *Patient  `gorm:"constraint:OnDelete:CASCADE;foreignKey:PatientID;references:ID" json:"-"`
	Text      string    `gorm:"not null;column:text" json:"text"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Transcript) TableName() string {
	return "transcript"
}

func (tr *Transcript) BeforeCreate(_ *gorm.DB) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	return nil
}
