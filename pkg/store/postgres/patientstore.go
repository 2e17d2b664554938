package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smarthealth/medquery/pkg/models"
	"github.com/smarthealth/medquery/pkg/store"
)

var _ models.PatientStore = &PatientStoreDAO{}

type PatientStoreDAO struct {
	db *bun.DB
}

func NewPatientStoreDAO(db *bun.DB) *PatientStoreDAO {
	return &PatientStoreDAO{
		db: db,
	}
}

// Get resolves a patient by identity document.
func (dao *PatientStoreDAO) Get(
	ctx context.Context,
	lookup *models.PatientLookup,
) (*models.Patient, error) {
	if lookup.DocumentType == "" || lookup.DocumentNumber == "" {
		return nil, models.NewBadRequestError("document type and number are required")
	}

	patient := new(PatientSchema)
	err := dao.db.NewSelect().
		Model(patient).
		Where("document_type = ?", lookup.DocumentType).
		Where("document_number = ?", lookup.DocumentNumber).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError(
				"patient with document " + lookup.DocumentType + " " + lookup.DocumentNumber,
			)
		}
		return nil, store.NewStorageError("failed to get patient", err)
	}

	return patientSchemaToPatient(patient), nil
}

// Create adds a patient.
func (dao *PatientStoreDAO) Create(
	ctx context.Context,
	patient *models.Patient,
) (*models.Patient, error) {
	if patient.PatientID == "" {
		return nil, models.NewBadRequestError("PatientID cannot be empty")
	}
	patientDB := &PatientSchema{
		PatientID:      patient.PatientID,
		FirstName:      patient.FirstName,
		LastName:       patient.LastName,
		BirthDate:      patient.BirthDate,
		DocumentType:   patient.DocumentType,
		DocumentNumber: patient.DocumentNumber,
	}
	_, err := dao.db.NewInsert().Model(patientDB).Returning("*").Exec(ctx)
	if err != nil {
		if err, ok := err.(pgdriver.Error); ok && err.IntegrityViolation() {
			return nil, models.NewBadRequestError(
				"patient already exists with patient_id: " + patient.PatientID,
			)
		}
		return nil, store.NewStorageError("failed to create patient", err)
	}

	return patientSchemaToPatient(patientDB), nil
}

func patientSchemaToPatient(p *PatientSchema) *models.Patient {
	return &models.Patient{
		UUID:           p.UUID,
		PatientID:      p.PatientID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		BirthDate:      p.BirthDate,
		DocumentType:   p.DocumentType,
		DocumentNumber: p.DocumentNumber,
		CreatedAt:      p.CreatedAt,
	}
}
