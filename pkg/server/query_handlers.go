package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/smarthealth/medquery/internal"
	"github.com/smarthealth/medquery/pkg/auth"
	"github.com/smarthealth/medquery/pkg/models"
	"github.com/smarthealth/medquery/pkg/rag"
)

var log = internal.GetLogger()

var validate = validator.New()

// QueryHandler returns a handler for POST requests to /api/v1/query. It runs
// the full question pipeline for the authenticated caller.
func QueryHandler(appState *models.AppState, pipeline *rag.QueryPipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request models.QueryRequest
		if err := decodeJSON(r, &request); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if err := validate.Struct(&request); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		identity, err := auth.IdentityFromRequest(r, appState.Config.Auth.Required)
		if err != nil {
			renderError(w, err, http.StatusUnauthorized)
			return
		}

		outcome, err := pipeline.Ask(
			r.Context(),
			identity,
			&models.PatientLookup{
				DocumentType:   request.DocumentType,
				DocumentNumber: request.DocumentNumber,
			},
			request.Question,
		)
		if err != nil {
			renderError(w, err, statusForPipelineError(err))
			return
		}

		if err := encodeJSON(w, outcome); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

type indexRecordRequest struct {
	Kind      string `json:"kind"       validate:"required"`
	PatientID string `json:"patient_id" validate:"required"`
	Text      string `json:"text"       validate:"required"`
}

// IndexRecordHandler returns a handler for POST requests to /api/v1/records.
// It embeds and indexes a single clinical record.
func IndexRecordHandler(indexer *rag.RecordIndexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request indexRecordRequest
		if err := decodeJSON(r, &request); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if err := validate.Struct(&request); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		record, err := indexer.IndexText(
			r.Context(),
			models.RecordKind(request.Kind),
			request.PatientID,
			request.Text,
		)
		if err != nil {
			renderError(w, err, statusForPipelineError(err))
			return
		}

		w.WriteHeader(http.StatusCreated)
		if err := encodeJSON(w, record); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

func statusForPipelineError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
