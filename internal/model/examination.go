package model

import (
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxExaminationIDLength bounds identifiers to the column width, in
// characters.
const MaxExaminationIDLength = 50

// IsValidExaminationID reports whether id could be stored at all: 1 to 50
// characters of valid UTF-8 without control characters. Identifiers are
// issued externally, so punctuation such as '.' or '/' is allowed. It says
// nothing about whether a record exists.
func IsValidExaminationID(id string) bool {
	if id == "" || !utf8.ValidString(id) || utf8.RuneCountInString(id) > MaxExaminationIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// DefaultExaminationStatus is the status given to freshly provisioned records.
const DefaultExaminationStatus = "pending"

// ExaminationRecord is a registered exam instance, looked up by its
// externally issued identifier.
type ExaminationRecord struct {
	ID            uuid.UUID `json:"id"`
	ExaminationID string    `json:"examination_id"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ValidateExaminationRequest is the payload of the identifier check.
type ValidateExaminationRequest struct {
	ExaminationID string `json:"examination_id" binding:"required,examid"`
}

// CreateExaminationRequest is the payload for provisioning a record.
type CreateExaminationRequest struct {
	ExaminationID string `json:"examination_id" binding:"required,examid"`
	Description   string `json:"description" binding:"omitempty,max=2000"`
	Status        string `json:"status" binding:"omitempty,max=20"`
}
