//go:build testutils

package testutils

import "github.com/smarthealth/medquery/pkg/models"

// TestRecords is a small clinical history for one patient, varied enough to
// exercise retrieval ranking across record kinds.
var TestRecords = []models.IndexedRecord{
	{
		Kind:       models.RecordKindMedicalSummary,
		SourceText: "58-year-old patient with a ten year history of type 2 diabetes and hypertension. Stable on current treatment.",
	},
	{
		Kind:       models.RecordKindDiagnosis,
		SourceText: "Type 2 diabetes mellitus, diagnosed 2014. HbA1c 7.1% at last control.",
	},
	{
		Kind:       models.RecordKindDiagnosis,
		SourceText: "Essential hypertension, diagnosed 2016. Blood pressure controlled.",
	},
	{
		Kind:       models.RecordKindPrescription,
		SourceText: "Metformin 850mg, one tablet with breakfast and dinner. Renewed for six months.",
	},
	{
		Kind:       models.RecordKindPrescription,
		SourceText: "Losartan 50mg, one tablet daily in the morning.",
	},
	{
		Kind:       models.RecordKindAppointment,
		SourceText: "Endocrinology follow-up. Patient reports good adherence. Requested lipid panel and HbA1c before next visit.",
	},
	{
		Kind:       models.RecordKindAppointment,
		SourceText: "General medicine consult for persistent cough. No fever. Chest exam normal, symptomatic treatment indicated.",
	},
}

var TestQuestions = []string{
	"What medication is the patient currently taking?",
	"When was the diabetes diagnosed?",
	"Does the patient have any pending lab work?",
	"What was the reason for the last consult?",
}
