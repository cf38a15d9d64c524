package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/farellandr/hadir/internal/models"
	"github.com/farellandr/hadir/internal/render"
	"github.com/farellandr/hadir/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// flakyStore fails the nth Fetch of failRef and passes everything else
// through to the wrapped store.
type flakyStore struct {
	storage.Store
	failRef string
	failOn  int

	mu      sync.Mutex
	fetches int
}

func (s *flakyStore) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	if ref == s.failRef {
		s.mu.Lock()
		s.fetches++
		n := s.fetches
		s.mu.Unlock()
		if n == s.failOn {
			return nil, errors.New("connection reset")
		}
	}
	return s.Store.Fetch(ctx, ref)
}

func newCertificateFixture(t *testing.T, store storage.Store) (*gorm.DB, *CertificateService) {
	db := newTestDB(t)
	return db, NewCertificateService(db, store, NewEligibilityService(db), nil)
}

func templateInput(imageURL string) TemplateInput {
	return TemplateInput{
		ImageURL: imageURL,
		Fields: []models.FieldPlacement{
			{Key: "name", X: 20, Y: 100, Width: 360, FontSize: 28, TextAlign: "center"},
			{Key: "event", X: 20, Y: 160, Width: 360, FontSize: 16, TextAlign: "center", Color: "#333333"},
			{Key: "date", X: 20, Y: 200, FontSize: 12},
		},
	}
}

func eligibleParticipant(t *testing.T, db *gorm.DB, event *models.Event, name string) *models.User {
	user := createUser(t, db, name)
	register(t, db, event, user, models.InitialPaymentStatus(event))
	attend(t, db, event, user, models.DirectionCheckin)
	attend(t, db, event, user, models.DirectionCheckout)
	return user
}

func TestParticipantData_Value(t *testing.T) {
	data := ParticipantData{
		Name:      "Laras",
		NPM:       "2110511001",
		EventName: "Workshop Go",
		Date:      "14 March 2026",
		Extra:     map[string]string{"role": "Peserta"},
	}
	assert.Equal(t, "Laras", data.Value("name"))
	assert.Equal(t, "2110511001", data.Value("npm"))
	assert.Equal(t, "2110511001", data.Value("identifier"))
	assert.Equal(t, "Workshop Go", data.Value("event_name"))
	assert.Equal(t, "Workshop Go", data.Value("Event"))
	assert.Equal(t, "14 March 2026", data.Value("date"))
	assert.Equal(t, "Peserta", data.Value("role"))
	assert.Empty(t, data.Value("unknown"))
}

func TestParticipantData_PassesThroughUserAndEvent(t *testing.T) {
	db := newTestDB(t)
	event := createEvent(t, db, 0)
	startTime := "09:00"
	require.NoError(t, db.Model(event).Update("start_time", startTime).Error)
	user := eligibleParticipant(t, db, event, "ada")

	ev, status, err := NewEligibilityService(db).Check(context.Background(), event.ID, user.ID)
	require.NoError(t, err)

	data := participantData(ev, &status.User)
	assert.Equal(t, user.Email, data.Value("email"))
	assert.Equal(t, user.ID.String(), data.Value("id"))
	assert.Equal(t, "Aula", data.Value("location"))
	assert.Equal(t, startTime, data.Value("start_time"))
	assert.Equal(t, "14 March 2026", data.Value("date"))
}

func TestCertificateService_GenerateRendersPassthroughField(t *testing.T) {
	store := newTestStore(t)
	db, svc := newCertificateFixture(t, store)
	event := createEvent(t, db, 0)
	user := eligibleParticipant(t, db, event, "bayu")
	ctx := context.Background()

	_, err := svc.UpsertTemplate(ctx, event.ID, TemplateInput{
		ImageURL: putBackground(t, store),
		Fields:   []models.FieldPlacement{{Key: "email", X: 10, Y: 20, FontSize: 24}},
	})
	require.NoError(t, err)

	certificate, err := svc.GenerateForParticipant(ctx, event.ID, user.ID)
	require.NoError(t, err)

	rc, err := store.Fetch(ctx, certificate.FileURL)
	require.NoError(t, err)
	img, err := render.DecodeImage(rc)
	rc.Close()
	require.NoError(t, err)

	inked := false
	for y := 20; y < 50 && !inked; y++ {
		for x := 10; x < 390; x++ {
			if r, g, b, _ := img.At(x, y).RGBA(); r < 0x8000 || g < 0x8000 || b < 0x8000 {
				inked = true
				break
			}
		}
	}
	assert.True(t, inked, "email field rendered nothing")
}

func TestCertificateService_TemplateLifecycle(t *testing.T) {
	store := newTestStore(t)
	db, svc := newCertificateFixture(t, store)
	event := createEvent(t, db, 0)
	ctx := context.Background()

	_, err := svc.Template(ctx, event.ID)
	assert.ErrorIs(t, err, ErrTemplateMissing)

	_, err = svc.UpsertTemplate(ctx, event.ID, TemplateInput{})
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	_, err = svc.UpsertTemplate(ctx, uuid.New(), templateInput("/uploads/x.png"))
	assert.ErrorIs(t, err, ErrEventNotFound)

	first, err := svc.UpsertTemplate(ctx, event.ID, templateInput("/uploads/a.png"))
	require.NoError(t, err)
	assert.Len(t, first.Fields, 3)

	second, err := svc.UpsertTemplate(ctx, event.ID, TemplateInput{
		ImageURL: "/uploads/b.png",
		Fields:   []models.FieldPlacement{{Key: "name", X: 1, Y: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "/uploads/b.png", second.ImageURL)
	assert.Len(t, second.Fields, 1)

	var count int64
	db.Model(&models.CertificateTemplate{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestCertificateService_GenerateReplacesPrevious(t *testing.T) {
	store := newTestStore(t)
	db, svc := newCertificateFixture(t, store)
	event := createEvent(t, db, 0)
	user := eligibleParticipant(t, db, event, "maya")
	ctx := context.Background()

	_, err := svc.UpsertTemplate(ctx, event.ID, templateInput(putBackground(t, store)))
	require.NoError(t, err)

	first, err := svc.GenerateForParticipant(ctx, event.ID, user.ID)
	require.NoError(t, err)

	rc, err := store.Fetch(ctx, first.FileURL)
	require.NoError(t, err)
	img, err := render.DecodeImage(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	second, err := svc.GenerateForParticipant(ctx, event.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.FileURL, second.FileURL)

	var count int64
	db.Model(&models.Certificate{}).Where("event_id = ? AND user_id = ?", event.ID, user.ID).Count(&count)
	assert.EqualValues(t, 1, count)

	_, err = store.Fetch(ctx, first.FileURL)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mine, err := svc.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, second.FileURL, mine[0].FileURL)
	require.NotNil(t, mine[0].Event)
	assert.Equal(t, event.Name, mine[0].Event.Name)
}

func TestCertificateService_GenerateRequiresEligibility(t *testing.T) {
	store := newTestStore(t)
	db, svc := newCertificateFixture(t, store)
	event := createEvent(t, db, 0)
	ctx := context.Background()

	halfway := createUser(t, db, "nadia")
	register(t, db, event, halfway, models.PaymentStatusFree)
	attend(t, db, event, halfway, models.DirectionCheckin)

	_, err := svc.GenerateForParticipant(ctx, event.ID, halfway.ID)
	assert.ErrorIs(t, err, ErrNotEligible)

	_, err = svc.GenerateForParticipant(ctx, event.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotEligible)

	done := eligibleParticipant(t, db, event, "oki")
	_, err = svc.GenerateForParticipant(ctx, event.ID, done.ID)
	assert.ErrorIs(t, err, ErrTemplateMissing)
}

func TestCertificateService_UnreadableFontFallsBack(t *testing.T) {
	store := newTestStore(t)
	db, svc := newCertificateFixture(t, store)
	event := createEvent(t, db, 0)
	user := eligibleParticipant(t, db, event, "putri")
	ctx := context.Background()

	notAFont, err := store.Put(ctx, "fonts/broken.ttf", bytes.NewReader([]byte("not a font")))
	require.NoError(t, err)
	fontName := "Broken"

	input := templateInput(putBackground(t, store))
	input.FontURL = &notAFont
	input.FontName = &fontName
	_, err = svc.UpsertTemplate(ctx, event.ID, input)
	require.NoError(t, err)

	certificate, err := svc.GenerateForParticipant(ctx, event.ID, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, certificate.FileURL)
}

func TestCertificateService_GenerateMissingBackground(t *testing.T) {
	store := newTestStore(t)
	db, svc := newCertificateFixture(t, store)
	event := createEvent(t, db, 0)
	user := eligibleParticipant(t, db, event, "raka")
	ctx := context.Background()

	_, err := svc.UpsertTemplate(ctx, event.ID, templateInput("/uploads/templates/missing.png"))
	require.NoError(t, err)

	_, err = svc.GenerateForParticipant(ctx, event.ID, user.ID)
	require.Error(t, err)

	var count int64
	db.Model(&models.Certificate{}).Count(&count)
	assert.Zero(t, count)
}

// Five eligible participants, the third background fetch fails: four
// certificates exist and the report names the one failure.
func TestCertificateService_GenerateBulkContinuesPastFailure(t *testing.T) {
	local := newTestStore(t)
	background := putBackground(t, local)
	store := &flakyStore{Store: local, failRef: background, failOn: 3}

	db, svc := newCertificateFixture(t, store)
	event := createEvent(t, db, 0)
	ctx := context.Background()

	users := make(map[uuid.UUID]bool)
	for _, name := range []string{"satu", "dua", "tiga", "empat", "lima"} {
		users[eligibleParticipant(t, db, event, name).ID] = true
	}
	// Registered but never checked out, so not part of the run.
	bystander := createUser(t, db, "enam")
	register(t, db, event, bystander, models.PaymentStatusFree)

	_, err := svc.UpsertTemplate(ctx, event.ID, templateInput(background))
	require.NoError(t, err)

	report, err := svc.GenerateBulk(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, report.Succeeded, 4)
	require.Len(t, report.Failed, 1)

	failed := report.Failed[0].UserID
	assert.True(t, users[failed])
	assert.Contains(t, report.Failed[0].Error, "connection reset")

	var certificates []models.Certificate
	require.NoError(t, db.Where("event_id = ?", event.ID).Find(&certificates).Error)
	assert.Len(t, certificates, 4)
	for _, certificate := range certificates {
		assert.NotEqual(t, failed, certificate.UserID)
		assert.NotEqual(t, bystander.ID, certificate.UserID)
	}
}

func TestCertificateService_GenerateBulkWithoutTemplate(t *testing.T) {
	db, svc := newCertificateFixture(t, newTestStore(t))
	event := createEvent(t, db, 0)
	eligibleParticipant(t, db, event, "tono")

	_, err := svc.GenerateBulk(context.Background(), event.ID)
	assert.ErrorIs(t, err, ErrTemplateMissing)
}
