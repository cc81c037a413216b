package muxwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/internal/lessons"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

func setupMuxWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE lessons (
  id TEXT PRIMARY KEY,
  chapter_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  type TEXT NOT NULL,
  content TEXT,
  video_url TEXT,
  duration_seconds INTEGER,
  mux_asset_id TEXT,
  mux_playback_id TEXT,
  mux_upload_id TEXT,
  position INTEGER NOT NULL DEFAULT 0,
  is_published INTEGER NOT NULL DEFAULT 0,
  is_free INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	return db
}

func newMuxTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{LessonRepo: lessons.NewRepository(db)})
	require.NoError(t, err)
	return svc
}

func seedVideoLesson(t *testing.T, db *gorm.DB, uploadID string) *models.Lesson {
	t.Helper()
	lesson := &models.Lesson{
		ID:          uuid.New(),
		ChapterID:   uuid.New(),
		Title:       "Intro",
		Type:        enums.LessonTypeVideo,
		MuxUploadID: &uploadID,
	}
	require.NoError(t, db.Create(lesson).Error)
	return lesson
}

func TestUploadAssetCreatedBindsAsset(t *testing.T) {
	db := setupMuxWebhookTestDB(t)
	service := newMuxTestService(t, db)
	lesson := seedVideoLesson(t, db, "upload_1")

	err := service.HandleEvent(context.Background(), &MuxWebhookEvent{
		Type: "video.upload.asset_created",
		Data: MuxWebhookData{ID: "asset_1", UploadID: "upload_1"},
	})
	require.NoError(t, err)

	stored, err := lessons.NewRepository(db).FindByID(context.Background(), lesson.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.MuxAssetID)
	assert.Equal(t, "asset_1", *stored.MuxAssetID)
	assert.Nil(t, stored.MuxPlaybackID)
}

func TestAssetReadyStoresPlaybackAndDuration(t *testing.T) {
	db := setupMuxWebhookTestDB(t)
	service := newMuxTestService(t, db)
	lesson := seedVideoLesson(t, db, "upload_2")

	require.NoError(t, service.HandleEvent(context.Background(), &MuxWebhookEvent{
		Type: "video.upload.asset_created",
		Data: MuxWebhookData{ID: "asset_2", UploadID: "upload_2"},
	}))
	require.NoError(t, service.HandleEvent(context.Background(), &MuxWebhookEvent{
		Type: "video.asset.ready",
		Data: MuxWebhookData{
			ID:          "asset_2",
			UploadID:    "upload_2",
			Duration:    634.56,
			PlaybackIDs: []MuxPlaybackIDEntry{{ID: "playback_2", Policy: "public"}},
		},
	}))

	stored, err := lessons.NewRepository(db).FindByID(context.Background(), lesson.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.MuxPlaybackID)
	assert.Equal(t, "playback_2", *stored.MuxPlaybackID)
	require.NotNil(t, stored.Duration)
	assert.Equal(t, 635, *stored.Duration)
}

func TestAssetReadyFallsBackToUploadID(t *testing.T) {
	db := setupMuxWebhookTestDB(t)
	service := newMuxTestService(t, db)
	lesson := seedVideoLesson(t, db, "upload_3")

	// asset_created never arrived; ready still resolves via upload id.
	require.NoError(t, service.HandleEvent(context.Background(), &MuxWebhookEvent{
		Type: "video.asset.ready",
		Data: MuxWebhookData{
			ID:          "asset_3",
			UploadID:    "upload_3",
			Duration:    120,
			PlaybackIDs: []MuxPlaybackIDEntry{{ID: "playback_3"}},
		},
	}))

	stored, err := lessons.NewRepository(db).FindByID(context.Background(), lesson.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.MuxAssetID)
	assert.Equal(t, "asset_3", *stored.MuxAssetID)
	require.NotNil(t, stored.MuxPlaybackID)
	assert.Equal(t, "playback_3", *stored.MuxPlaybackID)
}

func TestAssetErroredClearsReferences(t *testing.T) {
	db := setupMuxWebhookTestDB(t)
	service := newMuxTestService(t, db)
	lesson := seedVideoLesson(t, db, "upload_4")

	require.NoError(t, service.HandleEvent(context.Background(), &MuxWebhookEvent{
		Type: "video.upload.asset_created",
		Data: MuxWebhookData{ID: "asset_4", UploadID: "upload_4"},
	}))
	require.NoError(t, service.HandleEvent(context.Background(), &MuxWebhookEvent{
		Type: "video.asset.errored",
		Data: MuxWebhookData{ID: "asset_4"},
	}))

	stored, err := lessons.NewRepository(db).FindByID(context.Background(), lesson.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.MuxAssetID)
	assert.Nil(t, stored.MuxPlaybackID)
	require.NotNil(t, stored.MuxUploadID)
}

func TestUnknownAssetAcknowledged(t *testing.T) {
	db := setupMuxWebhookTestDB(t)
	service := newMuxTestService(t, db)

	require.NoError(t, service.HandleEvent(context.Background(), &MuxWebhookEvent{
		Type: "video.asset.ready",
		Data: MuxWebhookData{ID: "asset_orphan"},
	}))
	require.NoError(t, service.HandleEvent(context.Background(), &MuxWebhookEvent{
		Type: "video.ignored.event",
	}))
}

func signMuxPayload(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	payload := []byte(`{"type":"video.asset.ready"}`)
	secret := "whsec_mux"
	digest := signMuxPayload(secret, "1700000000", payload)
	header := fmt.Sprintf("t=1700000000,v1=%s", digest)

	assert.True(t, ValidateSignature(payload, secret, header))
	assert.False(t, ValidateSignature(payload, "other-secret", header))
	assert.False(t, ValidateSignature([]byte(`{}`), secret, header))
	assert.False(t, ValidateSignature(payload, secret, "t=1700000000"))
	assert.False(t, ValidateSignature(payload, secret, ""))
}
