package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/farellandr/hadir/config"
	"github.com/farellandr/hadir/internal/models"
	"github.com/farellandr/hadir/internal/services"
	"github.com/farellandr/hadir/internal/storage"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestHandlers(t *testing.T) (*gorm.DB, *Handlers) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, config.Migrate(db))

	store, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	svc := services.New(db, store, nil, services.Options{})
	return db, NewHandlers(svc, nil)
}

func TestTaskPayloads(t *testing.T) {
	eventID := uuid.New()
	task, err := NewCertificateBulkTask(eventID)
	require.NoError(t, err)
	assert.Equal(t, TypeCertificateBulk, task.Type())

	var payload CertificateBulkPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, eventID, payload.EventID)

	purge, err := NewTokenPurgeTask(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, TypeTokenPurge, purge.Type())
}

func TestHandleCertificateBulk_SkipsRetryWithoutTemplate(t *testing.T) {
	db, h := newTestHandlers(t)
	event := models.Event{Name: "Kuliah Umum", Date: time.Now(), Location: "Aula"}
	require.NoError(t, db.Create(&event).Error)

	task, err := NewCertificateBulkTask(event.ID)
	require.NoError(t, err)

	err = h.HandleCertificateBulk(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = h.HandleCertificateBulk(context.Background(), asynq.NewTask(TypeCertificateBulk, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleTokenPurge(t *testing.T) {
	db, h := newTestHandlers(t)
	event := models.Event{Name: "Kuliah Umum", Date: time.Now(), Location: "Aula"}
	require.NoError(t, db.Create(&event).Error)

	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.DynamicToken{
		Token: "old", EventID: event.ID, Direction: models.DirectionCheckin,
		ExpiresAt: now.Add(-3 * time.Hour), CreatedAt: now.Add(-3 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.DynamicToken{
		Token: "new", EventID: event.ID, Direction: models.DirectionCheckin,
		ExpiresAt: now.Add(10 * time.Second), CreatedAt: now,
	}).Error)

	task, err := NewTokenPurgeTask(time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.HandleTokenPurge(context.Background(), task))

	var remaining []models.DynamicToken
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].Token)
}
