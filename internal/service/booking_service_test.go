package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/apierr"
	"github.com/bookwell/scheduling-core/internal/config"
	"github.com/bookwell/scheduling-core/internal/models"
	"github.com/bookwell/scheduling-core/internal/repository"
	"github.com/bookwell/scheduling-core/internal/service"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// BookingServiceTestSuite follows the same real-Postgres convention as
// HoldServiceTestSuite: ConfirmBooking's exclusion-constraint backstop
// and transaction semantics are Postgres-specific.
type BookingServiceTestSuite struct {
	suite.Suite
	DB              *gorm.DB
	BookingService  *service.BookingService
	MeetingTypes    *repository.MeetingTypeRepository
	Holds           *repository.HoldRepository
	Documents       *repository.DocumentRepository
	Publisher       *mockPublisher
	Logger          *logger.Logger
}

func (suite *BookingServiceTestSuite) SetupSuite() {
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
	suite.Holds = repository.NewHoldRepository(db)
	suite.Documents = repository.NewDocumentRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	suite.Publisher = &mockPublisher{}

	suite.BookingService = service.NewBookingService(db, bookingRepo, suite.Holds, suite.MeetingTypes, suite.Documents, suite.Publisher, suite.Logger)
}

func (suite *BookingServiceTestSuite) TearDownSuite() {
	sqlDB, _ := suite.DB.DB()
	sqlDB.Close()
}

func (suite *BookingServiceTestSuite) SetupTest() {
	suite.Publisher.reset()
	suite.DB.Exec("DELETE FROM documents")
	suite.DB.Exec("DELETE FROM bookings")
	suite.DB.Exec("DELETE FROM slot_holds")
	suite.DB.Exec("DELETE FROM meeting_types")
}

func (suite *BookingServiceTestSuite) createMeetingType(requiresNDA bool) *models.MeetingType {
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

func (suite *BookingServiceTestSuite) createActiveHold(mt *models.MeetingType, start time.Time, idempotencyKey string) *models.SlotHold {
	hold := &models.SlotHold{
		MeetingTypeID:  mt.ID,
		SlotStart:      start,
		SlotEnd:        start.Add(30 * time.Minute),
		GuestEmail:     "guest@example.com",
		Status:         models.HoldStatusActive,
		ExpiresAt:      time.Now().Add(15 * time.Minute),
		IdempotencyKey: idempotencyKey,
	}
	suite.Require().NoError(suite.Holds.Create(suite.DB, hold))
	return hold
}

func (suite *BookingServiceTestSuite) TestConfirmBookingSucceeds() {
	mt := suite.createMeetingType(false)
	start := time.Date(2026, 8, 5, 14, 0, 0, 0, time.UTC)
	hold := suite.createActiveHold(mt, start, "11111111-1111-1111-1111-111111111111")

	booking, err := suite.BookingService.ConfirmBooking(context.Background(), service.ConfirmBookingRequest{
		HoldID:         hold.ID,
		GuestName:      "Jordan Guest",
		GuestTimezone:  "America/Los_Angeles",
		IdempotencyKey: "22222222-2222-2222-2222-222222222222",
	})

	suite.Require().NoError(err)
	suite.Equal(models.BookingStatusConfirmed, booking.Status)
	suite.Require().Len(suite.Publisher.events, 1)
	suite.Equal("booking.confirmed", suite.Publisher.events[0].subject)

	reloadedHold, err := suite.Holds.GetByID(context.Background(), hold.ID)
	suite.Require().NoError(err)
	suite.Equal(models.HoldStatusConverted, reloadedHold.Status)
}

func (suite *BookingServiceTestSuite) TestConfirmBookingIdempotentReplay() {
	mt := suite.createMeetingType(false)
	start := time.Date(2026, 8, 5, 15, 0, 0, 0, time.UTC)
	hold := suite.createActiveHold(mt, start, "33333333-3333-3333-3333-333333333333")

	req := service.ConfirmBookingRequest{
		HoldID:         hold.ID,
		GuestName:      "Jordan Guest",
		GuestTimezone:  "America/Los_Angeles",
		IdempotencyKey: "44444444-4444-4444-4444-444444444444",
	}

	first, err := suite.BookingService.ConfirmBooking(context.Background(), req)
	suite.Require().NoError(err)

	second, err := suite.BookingService.ConfirmBooking(context.Background(), req)
	suite.Require().NoError(err)
	suite.Equal(first.ID, second.ID)
	suite.Len(suite.Publisher.events, 1)
}

func (suite *BookingServiceTestSuite) TestConfirmBookingRejectsExpiredHold() {
	mt := suite.createMeetingType(false)
	start := time.Date(2026, 8, 5, 16, 0, 0, 0, time.UTC)
	hold := suite.createActiveHold(mt, start, "55555555-5555-5555-5555-555555555555")
	suite.Require().NoError(suite.DB.Model(&models.SlotHold{}).Where("id = ?", hold.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err := suite.BookingService.ConfirmBooking(context.Background(), service.ConfirmBookingRequest{
		HoldID:         hold.ID,
		GuestName:      "Jordan Guest",
		GuestTimezone:  "America/Los_Angeles",
		IdempotencyKey: "66666666-6666-6666-6666-666666666666",
	})

	suite.Require().Error(err)
	apiErr, ok := apierr.As(err)
	suite.Require().True(ok)
	suite.Equal(apierr.KindHoldExpired, apiErr.Kind)

	reloadedHold, err := suite.Holds.GetByID(context.Background(), hold.ID)
	suite.Require().NoError(err)
	suite.Equal(models.HoldStatusExpired, reloadedHold.Status)
}

func (suite *BookingServiceTestSuite) TestConfirmBookingRequiresSignedNDA() {
	mt := suite.createMeetingType(true)
	start := time.Date(2026, 8, 5, 17, 0, 0, 0, time.UTC)
	hold := suite.createActiveHold(mt, start, "77777777-7777-7777-7777-777777777777")

	_, err := suite.BookingService.ConfirmBooking(context.Background(), service.ConfirmBookingRequest{
		HoldID:         hold.ID,
		GuestName:      "Jordan Guest",
		GuestTimezone:  "America/Los_Angeles",
		IdempotencyKey: "88888888-8888-8888-8888-888888888888",
	})

	suite.Require().Error(err)
	apiErr, ok := apierr.As(err)
	suite.Require().True(ok)
	suite.Equal(apierr.KindNdaRequired, apiErr.Kind)
}

func (suite *BookingServiceTestSuite) TestConfirmBookingSucceedsWithSignedNDA() {
	mt := suite.createMeetingType(true)
	start := time.Date(2026, 8, 5, 18, 0, 0, 0, time.UTC)
	hold := suite.createActiveHold(mt, start, "99999999-9999-9999-9999-999999999999")

	suite.Require().NoError(suite.Documents.Create(context.Background(), &models.Document{
		HoldID:      hold.ID,
		Status:      models.DocumentStatusSigned,
		SignerEmail: hold.GuestEmail,
	}))

	booking, err := suite.BookingService.ConfirmBooking(context.Background(), service.ConfirmBookingRequest{
		HoldID:         hold.ID,
		GuestName:      "Jordan Guest",
		GuestTimezone:  "America/Los_Angeles",
		IdempotencyKey: "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa",
	})
	suite.Require().NoError(err)

	doc, err := suite.Documents.GetByHoldID(context.Background(), hold.ID)
	suite.Require().NoError(err)
	suite.Require().NotNil(doc.BookingID)
	suite.Equal(booking.ID, *doc.BookingID)
}

func TestBookingServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BookingServiceTestSuite))
}
