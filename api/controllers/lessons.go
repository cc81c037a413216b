package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learnhub-app/learnhub-backend/api/responses"
	"github.com/learnhub-app/learnhub-backend/api/validators"
	"github.com/learnhub-app/learnhub-backend/internal/lessons"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
	"github.com/learnhub-app/learnhub-backend/pkg/logger"
)

type lessonReorderRequest struct {
	Lessons []lessons.ReorderPair `json:"lessons" validate:"required,min=1,dive"`
}

// LessonCreate appends a lesson to the end of a chapter.
func LessonCreate(svc lessons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lesson service unavailable"))
			return
		}
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		chapterID, err := pathUUID(chi.URLParam(r, "chapterId"), "chapter id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body lessons.CreateLessonInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Create(r.Context(), actor, chapterID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// LessonList returns a chapter's lessons in position order.
func LessonList(svc lessons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lesson service unavailable"))
			return
		}
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		chapterID, err := pathUUID(chi.URLParam(r, "chapterId"), "chapter id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), actor, chapterID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// LessonUpdate edits lesson content and metadata.
func LessonUpdate(svc lessons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lesson service unavailable"))
			return
		}
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lessonID, err := pathUUID(chi.URLParam(r, "lessonId"), "lesson id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body lessons.UpdateLessonInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Update(r.Context(), actor, lessonID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// LessonPublish makes the lesson visible once its content passes the
// type-specific checks.
func LessonPublish(svc lessons.Service, logg *logger.Logger) http.HandlerFunc {
	return lessonTransition(svc, logg, false)
}

// LessonUnpublish hides the lesson again.
func LessonUnpublish(svc lessons.Service, logg *logger.Logger) http.HandlerFunc {
	return lessonTransition(svc, logg, true)
}

func lessonTransition(svc lessons.Service, logg *logger.Logger, unpublish bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lesson service unavailable"))
			return
		}
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lessonID, err := pathUUID(chi.URLParam(r, "lessonId"), "lesson id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transition := svc.Publish
		if unpublish {
			transition = svc.Unpublish
		}
		dto, err := transition(r.Context(), actor, lessonID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// LessonDelete removes a lesson.
func LessonDelete(svc lessons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lesson service unavailable"))
			return
		}
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lessonID, err := pathUUID(chi.URLParam(r, "lessonId"), "lesson id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actor, lessonID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// LessonReorder applies a full permutation of a chapter's lessons.
func LessonReorder(svc lessons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lesson service unavailable"))
			return
		}
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		chapterID, err := pathUUID(chi.URLParam(r, "chapterId"), "chapter id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body lessonReorderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reorder(r.Context(), actor, chapterID, body.Lessons); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "reordered"})
	}
}

// LessonUploadURL issues a direct upload ticket for a video lesson.
func LessonUploadURL(svc lessons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lesson service unavailable"))
			return
		}
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lessonID, err := pathUUID(chi.URLParam(r, "lessonId"), "lesson id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ticket, err := svc.CreateUploadURL(r.Context(), actor, lessonID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ticket)
	}
}
