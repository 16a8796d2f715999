package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Patient is doctor-scoped. Identity is heuristic: the same (doctor, name,
// age) triple resolves to the same row on submission; a returning patient
// recorded with a different age becomes a new Patient.
type Patient struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DoctorID  uuid.UUID `gorm:"index;not null;column:doctor_id" json:"doctor_id"`
	Doctor    *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:DoctorID;references:ID" json:"-"`
	Name      string    `gorm:"index;not null;column:name" json:"name"`
	Age       int       `gorm:"not null;column:age" json:"age"`
	Gender    string    `gorm:"column:gender" json:"gender,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Patient) TableName() string {
	return "patient"
}

func (p *Patient) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
