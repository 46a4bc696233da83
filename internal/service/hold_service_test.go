package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/apierr"
	"github.com/bookwell/scheduling-core/internal/client"
	"github.com/bookwell/scheduling-core/internal/config"
	"github.com/bookwell/scheduling-core/internal/models"
	"github.com/bookwell/scheduling-core/internal/repository"
	"github.com/bookwell/scheduling-core/internal/service"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// mockPublisher records every event published so tests can assert on the
// sequence without a real bus, mirroring the teacher's MockEventPublisher.
type mockPublisher struct {
	events []struct {
		subject string
		data    any
	}
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data any) error {
	m.events = append(m.events, struct {
		subject string
		data    any
	}{subject, data})
	return nil
}

func (m *mockPublisher) reset() { m.events = nil }

// HoldServiceTestSuite runs against a real Postgres database: the lock
// (WithSlotLock) and exclusion-constraint behavior CreateHold depends on
// are Postgres-specific and cannot be exercised against sqlite, following
// the teacher's own booking_service_test.go convention.
type HoldServiceTestSuite struct {
	suite.Suite
	DB           *gorm.DB
	HoldService  *service.HoldService
	MeetingTypes *repository.MeetingTypeRepository
	Publisher    *mockPublisher
	Logger       *logger.Logger
}

func (suite *HoldServiceTestSuite) SetupSuite() {
	suite.Logger = logger.New("error")

	testCfg := config.NewTestConfig()
	db, err := gorm.Open(postgres.Open(testCfg.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		suite.T().Fatalf("failed to connect to postgres: %v", err)
	}
	suite.DB = db

	suite.Require().NoError(db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error)
	suite.Require().NoError(db.AutoMigrate(&models.MeetingType{}, &models.SlotHold{}, &models.Booking{}, &models.Document{}))

	suite.MeetingTypes = repository.NewMeetingTypeRepository(db)
	holdRepo := repository.NewHoldRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	suite.Publisher = &mockPublisher{}

	signingClient := client.NewSigningClient(config.SigningProvider{}, suite.Logger)
	suite.HoldService = service.NewHoldService(holdRepo, suite.MeetingTypes, documentRepo, signingClient, suite.Publisher, 15*time.Minute, suite.Logger)
}

func (suite *HoldServiceTestSuite) TearDownSuite() {
	sqlDB, _ := suite.DB.DB()
	sqlDB.Close()
}

func (suite *HoldServiceTestSuite) SetupTest() {
	suite.Publisher.reset()
	suite.DB.Exec("DELETE FROM documents")
	suite.DB.Exec("DELETE FROM slot_holds")
	suite.DB.Exec("DELETE FROM bookings")
	suite.DB.Exec("DELETE FROM meeting_types")
}

func (suite *HoldServiceTestSuite) createMeetingType(requiresNDA bool) *models.MeetingType {
	mt := &models.MeetingType{
		OwnerID:         "owner-1",
		Slug:            "intro-call",
		Name:            "Intro Call",
		Timezone:        "America/New_York",
		DurationMinutes: 30,
		RequiresNDA:     requiresNDA,
		Active:          true,
	}
	suite.Require().NoError(suite.DB.Create(mt).Error)
	return mt
}

func (suite *HoldServiceTestSuite) TestCreateHoldSucceeds() {
	mt := suite.createMeetingType(false)
	start := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)

	hold, err := suite.HoldService.CreateHold(context.Background(), service.CreateHoldRequest{
		MeetingTypeID:  mt.ID,
		SlotStart:      start,
		SlotEnd:        start.Add(30 * time.Minute),
		GuestEmail:     "guest@example.com",
		IdempotencyKey: "11111111-1111-1111-1111-111111111111",
	})

	suite.Require().NoError(err)
	suite.Equal(models.HoldStatusActive, hold.Status)
	suite.Require().Len(suite.Publisher.events, 1)
	suite.Equal("slot.held", suite.Publisher.events[0].subject)
}

func (suite *HoldServiceTestSuite) TestCreateHoldIdempotentReplay() {
	mt := suite.createMeetingType(false)
	start := time.Date(2026, 8, 3, 15, 0, 0, 0, time.UTC)
	req := service.CreateHoldRequest{
		MeetingTypeID:  mt.ID,
		SlotStart:      start,
		SlotEnd:        start.Add(30 * time.Minute),
		GuestEmail:     "guest@example.com",
		IdempotencyKey: "22222222-2222-2222-2222-222222222222",
	}

	first, err := suite.HoldService.CreateHold(context.Background(), req)
	suite.Require().NoError(err)

	second, err := suite.HoldService.CreateHold(context.Background(), req)
	suite.Require().NoError(err)
	suite.Equal(first.ID, second.ID)

	// Only the first attempt publishes slot.held.
	suite.Len(suite.Publisher.events, 1)
}

func (suite *HoldServiceTestSuite) TestCreateHoldRejectsOverlap() {
	mt := suite.createMeetingType(false)
	start := time.Date(2026, 8, 3, 16, 0, 0, 0, time.UTC)

	_, err := suite.HoldService.CreateHold(context.Background(), service.CreateHoldRequest{
		MeetingTypeID:  mt.ID,
		SlotStart:      start,
		SlotEnd:        start.Add(30 * time.Minute),
		GuestEmail:     "first@example.com",
		IdempotencyKey: "33333333-3333-3333-3333-333333333333",
	})
	suite.Require().NoError(err)

	_, err = suite.HoldService.CreateHold(context.Background(), service.CreateHoldRequest{
		MeetingTypeID:  mt.ID,
		SlotStart:      start.Add(15 * time.Minute),
		SlotEnd:        start.Add(45 * time.Minute),
		GuestEmail:     "second@example.com",
		IdempotencyKey: "44444444-4444-4444-4444-444444444444",
	})

	suite.Error(err)
	apiErr, ok := apierr.As(err)
	suite.Require().True(ok)
	suite.Equal(apierr.KindSlotUnavailable, apiErr.Kind)
}

func (suite *HoldServiceTestSuite) TestCreateHoldSkipsSigningWhenProviderUnconfigured() {
	mt := suite.createMeetingType(true)
	start := time.Date(2026, 8, 3, 17, 0, 0, 0, time.UTC)
	name := "Jordan Guest"

	hold, err := suite.HoldService.CreateHold(context.Background(), service.CreateHoldRequest{
		MeetingTypeID:  mt.ID,
		SlotStart:      start,
		SlotEnd:        start.Add(30 * time.Minute),
		GuestEmail:     "guest@example.com",
		GuestName:      &name,
		IdempotencyKey: "55555555-5555-5555-5555-555555555555",
	})
	suite.Require().NoError(err)

	// The signing client is unconfigured (empty base URL), so it degrades
	// to a no-op and no document is persisted or nda.created emitted.
	var doc models.Document
	err = suite.DB.Where("hold_id = ?", hold.ID).First(&doc).Error
	suite.Equal(gorm.ErrRecordNotFound, err)
	suite.Len(suite.Publisher.events, 1) // slot.held only
}

func (suite *HoldServiceTestSuite) TestCreateHoldIdempotentReplayUnderConcurrency() {
	mt := suite.createMeetingType(false)
	start := time.Date(2026, 8, 3, 20, 0, 0, 0, time.UTC)
	req := service.CreateHoldRequest{
		MeetingTypeID:  mt.ID,
		SlotStart:      start,
		SlotEnd:        start.Add(30 * time.Minute),
		GuestEmail:     "guest@example.com",
		IdempotencyKey: "88888888-8888-8888-8888-888888888888",
	}

	results := make([]*models.SlotHold, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = suite.HoldService.CreateHold(context.Background(), req)
		}(i)
	}
	wg.Wait()

	suite.Require().NoError(errs[0])
	suite.Require().NoError(errs[1])
	suite.Equal(results[0].ID, results[1].ID)
	suite.Len(suite.Publisher.events, 1)
}

func (suite *HoldServiceTestSuite) TestReleaseHold() {
	mt := suite.createMeetingType(false)
	start := time.Date(2026, 8, 3, 18, 0, 0, 0, time.UTC)
	hold, err := suite.HoldService.CreateHold(context.Background(), service.CreateHoldRequest{
		MeetingTypeID:  mt.ID,
		SlotStart:      start,
		SlotEnd:        start.Add(30 * time.Minute),
		GuestEmail:     "guest@example.com",
		IdempotencyKey: "66666666-6666-6666-6666-666666666666",
	})
	suite.Require().NoError(err)
	suite.Publisher.reset()

	err = suite.HoldService.ReleaseHold(context.Background(), hold.ID)
	suite.Require().NoError(err)

	reloaded, err := suite.HoldService.GetHold(context.Background(), hold.ID)
	suite.Require().NoError(err)
	suite.Equal(models.HoldStatusReleased, reloaded.Status)
	suite.Require().Len(suite.Publisher.events, 1)
	suite.Equal("slot.released", suite.Publisher.events[0].subject)
}

func (suite *HoldServiceTestSuite) TestSweepExpired() {
	mt := suite.createMeetingType(false)
	start := time.Date(2026, 8, 3, 19, 0, 0, 0, time.UTC)
	hold, err := suite.HoldService.CreateHold(context.Background(), service.CreateHoldRequest{
		MeetingTypeID:  mt.ID,
		SlotStart:      start,
		SlotEnd:        start.Add(30 * time.Minute),
		GuestEmail:     "guest@example.com",
		IdempotencyKey: "77777777-7777-7777-7777-777777777777",
	})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.DB.Model(&models.SlotHold{}).
		Where("id = ?", hold.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	count, err := suite.HoldService.SweepExpired(context.Background())
	suite.Require().NoError(err)
	suite.Equal(1, count)

	reloaded, err := suite.HoldService.GetHold(context.Background(), hold.ID)
	suite.Require().NoError(err)
	suite.Equal(models.HoldStatusExpired, reloaded.Status)
}

func TestHoldServiceTestSuite(t *testing.T) {
	suite.Run(t, new(HoldServiceTestSuite))
}
