package models

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	UUID           uuid.UUID `json:"uuid"`
	PatientID      string    `json:"patient_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	BirthDate      time.Time `json:"birth_date"`
	DocumentType   string    `json:"document_type"`
	DocumentNumber string    `json:"document_number"`
	CreatedAt      time.Time `json:"created_at"`
}

// PatientLookup identifies a patient by identity document, the lookup key
// callers supply. It never carries internal identifiers.
type PatientLookup struct {
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
}

// Role determines which patient scopes an identity may query.
type Role string

const (
	// RoleClinician may query any patient.
	RoleClinician Role = "clinician"
	// RolePatient may only query the patient records it is linked to.
	RolePatient Role = "patient"
)

// Identity is the authenticated caller, resolved by the API layer before the
// pipeline is invoked.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	// PatientIDs lists the patients a RolePatient identity is linked to.
	// Ignored for RoleClinician.
	PatientIDs []string `json:"patient_ids,omitempty"`
}

// CanAccess reports whether the identity may query the given patient.
func (i *Identity) CanAccess(patientID string) bool {
	if i.Role == RoleClinician {
		return true
	}
	for _, id := range i.PatientIDs {
		if id == patientID {
			return true
		}
	}
	return false
}
