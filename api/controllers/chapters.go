package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/learnhub-app/learnhub-backend/api/responses"
	"github.com/learnhub-app/learnhub-backend/api/validators"
	"github.com/learnhub-app/learnhub-backend/internal/chapters"
	"github.com/learnhub-app/learnhub-backend/internal/courses"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
	"github.com/learnhub-app/learnhub-backend/pkg/logger"
)

type chapterReorderRequest struct {
	Chapters []chapters.ReorderPair `json:"chapters" validate:"required,min=1,dive"`
}

// ChapterCreate appends a chapter to the end of the course outline.
func ChapterCreate(svc chapters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, courseID, ok := chapterScope(w, r, svc, logg)
		if !ok {
			return
		}

		var body chapters.CreateChapterInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Create(r.Context(), actor, courseID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// ChapterList returns the course outline in position order.
func ChapterList(svc chapters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, courseID, ok := chapterScope(w, r, svc, logg)
		if !ok {
			return
		}

		list, err := svc.List(r.Context(), actor, courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ChapterUpdate edits a chapter's title and description.
func ChapterUpdate(svc chapters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, courseID, ok := chapterScope(w, r, svc, logg)
		if !ok {
			return
		}
		chapterID, err := pathUUID(chi.URLParam(r, "chapterId"), "chapter id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body chapters.UpdateChapterInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Update(r.Context(), actor, courseID, chapterID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// ChapterPublish makes the chapter visible to enrolled students.
func ChapterPublish(svc chapters.Service, logg *logger.Logger) http.HandlerFunc {
	return chapterTransition(svc, logg, false)
}

// ChapterUnpublish hides the chapter again.
func ChapterUnpublish(svc chapters.Service, logg *logger.Logger) http.HandlerFunc {
	return chapterTransition(svc, logg, true)
}

func chapterTransition(svc chapters.Service, logg *logger.Logger, unpublish bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, courseID, ok := chapterScope(w, r, svc, logg)
		if !ok {
			return
		}
		chapterID, err := pathUUID(chi.URLParam(r, "chapterId"), "chapter id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transition := svc.Publish
		if unpublish {
			transition = svc.Unpublish
		}
		dto, err := transition(r.Context(), actor, courseID, chapterID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// ChapterDelete removes a chapter and its lessons.
func ChapterDelete(svc chapters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, courseID, ok := chapterScope(w, r, svc, logg)
		if !ok {
			return
		}
		chapterID, err := pathUUID(chi.URLParam(r, "chapterId"), "chapter id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actor, courseID, chapterID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ChapterReorder applies a full permutation of the course outline.
func ChapterReorder(svc chapters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, courseID, ok := chapterScope(w, r, svc, logg)
		if !ok {
			return
		}

		var body chapterReorderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reorder(r.Context(), actor, courseID, body.Chapters); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "reordered"})
	}
}

func chapterScope(w http.ResponseWriter, r *http.Request, svc chapters.Service, logg *logger.Logger) (courses.Actor, uuid.UUID, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chapter service unavailable"))
		return courses.Actor{}, uuid.Nil, false
	}
	actor, err := actorFromContext(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return courses.Actor{}, uuid.Nil, false
	}
	courseID, err := pathUUID(chi.URLParam(r, "courseId"), "course id")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return courses.Actor{}, uuid.Nil, false
	}
	return actor, courseID, true
}
