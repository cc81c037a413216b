package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/learnhub-app/learnhub-backend/api/responses"
	"github.com/learnhub-app/learnhub-backend/internal/certificates"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
	"github.com/learnhub-app/learnhub-backend/pkg/logger"
)

// CertificateListMine returns the caller's earned certificates.
func CertificateListMine(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "certificate service unavailable"))
			return
		}
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListMine(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// CertificateVerify resolves a credential id to its public verification
// record. No authentication required.
func CertificateVerify(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "certificate service unavailable"))
			return
		}
		credentialID := strings.TrimSpace(chi.URLParam(r, "credentialId"))
		if credentialID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "credential id is required"))
			return
		}

		dto, err := svc.Verify(r.Context(), credentialID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
