package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/farellandr/hadir/config"
	"github.com/farellandr/hadir/internal/models"
	"github.com/farellandr/hadir/internal/storage"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{
		Name:     name,
		NPM:      fmt.Sprintf("NPM-%s", name),
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Password: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createEvent(t *testing.T, db *gorm.DB, price int64) *models.Event {
	t.Helper()
	event := &models.Event{
		Name:     "Seminar Nasional",
		Date:     time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Location: "Aula",
		IsPaid:   price > 0,
		Price:    price,
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func register(t *testing.T, db *gorm.DB, event *models.Event, user *models.User, status string) *models.Registration {
	t.Helper()
	registration := &models.Registration{EventID: event.ID, UserID: user.ID, PaymentStatus: status}
	require.NoError(t, db.Create(registration).Error)
	return registration
}

func attend(t *testing.T, db *gorm.DB, event *models.Event, user *models.User, direction string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Attendance{
		EventID:   event.ID,
		UserID:    user.ID,
		Direction: direction,
		ScannedAt: testNow,
	}).Error)
}

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	return store
}

func putBackground(t *testing.T, store storage.Store) string {
	t.Helper()
	ref, err := store.Put(context.Background(), "templates/background.png", bytes.NewReader(testPNG(t, 400, 300)))
	require.NoError(t, err)
	return ref
}
