package muxwebhook

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
)

type lessonRepository interface {
	FindByMuxUploadID(ctx context.Context, uploadID string) (*models.Lesson, error)
	FindByMuxAssetID(ctx context.Context, assetID string) (*models.Lesson, error)
	Update(ctx context.Context, lesson *models.Lesson) error
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	LessonRepo lessonRepository
}

// Service applies Mux asset lifecycle events to lessons. Events for
// uploads or assets we no longer track are acknowledged and dropped, so
// Mux stops retrying them.
type Service struct {
	lessons lessonRepository
}

func NewService(params ServiceParams) (*Service, error) {
	if params.LessonRepo == nil {
		return nil, fmt.Errorf("lesson repository is required")
	}
	return &Service{lessons: params.LessonRepo}, nil
}

// MuxWebhookEvent is the subset of the Mux webhook envelope we consume.
type MuxWebhookEvent struct {
	Type string         `json:"type"`
	Data MuxWebhookData `json:"data"`
}

type MuxWebhookData struct {
	ID          string               `json:"id"`
	UploadID    string               `json:"upload_id"`
	Duration    float64              `json:"duration"`
	PlaybackIDs []MuxPlaybackIDEntry `json:"playback_ids"`
}

type MuxPlaybackIDEntry struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

func (s *Service) HandleEvent(ctx context.Context, event *MuxWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "mux event required")
	}

	switch event.Type {
	case "video.upload.asset_created":
		return s.bindAsset(ctx, event.Data)
	case "video.asset.ready":
		return s.markReady(ctx, event.Data)
	case "video.asset.errored":
		return s.markErrored(ctx, event.Data)
	default:
		return nil
	}
}

// bindAsset records the asset id created for a pending upload.
func (s *Service) bindAsset(ctx context.Context, data MuxWebhookData) error {
	if data.UploadID == "" || data.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "upload id and asset id required")
	}
	lesson, err := s.lessons.FindByMuxUploadID(ctx, data.UploadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lesson by upload")
	}
	assetID := data.ID
	lesson.MuxAssetID = &assetID
	if err := s.lessons.Update(ctx, lesson); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bind asset to lesson")
	}
	return nil
}

// markReady stores the playback id and rounded duration once Mux has
// finished processing the asset.
func (s *Service) markReady(ctx context.Context, data MuxWebhookData) error {
	if data.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "asset id required")
	}
	lesson, err := s.findByAssetOrUpload(ctx, data)
	if err != nil || lesson == nil {
		return err
	}
	assetID := data.ID
	lesson.MuxAssetID = &assetID
	if len(data.PlaybackIDs) > 0 && data.PlaybackIDs[0].ID != "" {
		playbackID := data.PlaybackIDs[0].ID
		lesson.MuxPlaybackID = &playbackID
	}
	if data.Duration > 0 {
		duration := int(math.Round(data.Duration))
		lesson.Duration = &duration
	}
	if err := s.lessons.Update(ctx, lesson); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store playback details")
	}
	return nil
}

// markErrored clears the asset references so the lesson can be re-uploaded.
func (s *Service) markErrored(ctx context.Context, data MuxWebhookData) error {
	if data.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "asset id required")
	}
	lesson, err := s.findByAssetOrUpload(ctx, data)
	if err != nil || lesson == nil {
		return err
	}
	lesson.MuxAssetID = nil
	lesson.MuxPlaybackID = nil
	if err := s.lessons.Update(ctx, lesson); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear asset references")
	}
	return nil
}

// findByAssetOrUpload resolves the lesson by asset id first, falling
// back to the upload id for assets whose asset_created event was lost.
func (s *Service) findByAssetOrUpload(ctx context.Context, data MuxWebhookData) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByMuxAssetID(ctx, data.ID)
	if err == nil {
		return lesson, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lesson by asset")
	}
	if data.UploadID == "" {
		return nil, nil
	}
	lesson, err = s.lessons.FindByMuxUploadID(ctx, data.UploadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lesson by upload")
	}
	return lesson, nil
}
