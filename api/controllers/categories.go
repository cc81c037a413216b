package controllers

import (
	"net/http"

	"github.com/learnhub-app/learnhub-backend/api/responses"
	"github.com/learnhub-app/learnhub-backend/internal/categories"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
	"github.com/learnhub-app/learnhub-backend/pkg/logger"
)

// CategoryList returns the public category catalog.
func CategoryList(svc categories.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
			return
		}
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
