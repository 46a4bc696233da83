package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/handlers"
	"github.com/bookwell/scheduling-core/internal/models"
	"github.com/bookwell/scheduling-core/internal/repository"
	"github.com/bookwell/scheduling-core/internal/service"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// BookingHandlerTestSuite exercises the public booking routes against a
// real AvailabilityService backed by sqlite. The hold/confirm endpoints
// go through HoldRepository.WithSlotLock (a Postgres advisory lock), so
// this suite covers only the read paths and request-validation failures;
// the protocol itself is covered by HoldServiceTestSuite and
// BookingServiceTestSuite against a real Postgres database.
type BookingHandlerTestSuite struct {
	suite.Suite
	DB     *gorm.DB
	Router *gin.Engine
}

func (suite *BookingHandlerTestSuite) SetupSuite() {
	testLogger := logger.New("error")
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	suite.Require().NoError(err)
	suite.DB = db

	suite.Require().NoError(db.AutoMigrate(&models.MeetingType{}, &models.AvailabilityRule{}, &models.BlackoutDate{}, &models.SlotHold{}, &models.Booking{}))

	meetingTypeRepo := repository.NewMeetingTypeRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	availabilityService := service.NewAvailabilityService(meetingTypeRepo, availabilityRepo, 2*time.Hour, testLogger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	bookingHandler := handlers.NewBookingHandler(availabilityService, nil, nil, testLogger)
	router.GET("/book/:slug", bookingHandler.GetMeetingType)
	router.GET("/book/:slug/slots", bookingHandler.GetSlots)
	router.POST("/book/:slug/hold", bookingHandler.CreateHold)
	suite.Router = router
}

func (suite *BookingHandlerTestSuite) TearDownSuite() {
	sqlDB, _ := suite.DB.DB()
	sqlDB.Close()
}

func (suite *BookingHandlerTestSuite) SetupTest() {
	suite.DB.Exec("DELETE FROM meeting_types")
	suite.DB.Exec("DELETE FROM availability_rules")
}

func (suite *BookingHandlerTestSuite) seedMeetingType() *models.MeetingType {
	mt := &models.MeetingType{
		OwnerID:         "owner-1",
		Slug:            "intro-call",
		Name:            "Intro Call",
		Timezone:        "America/New_York",
		DurationMinutes: 30,
		Active:          true,
	}
	suite.Require().NoError(suite.DB.Create(mt).Error)
	suite.Require().NoError(suite.DB.Create(&models.AvailabilityRule{
		OwnerID:       mt.OwnerID,
		DayOfWeek:     1,
		StartTime:     "09:00",
		EndTime:       "17:00",
		EffectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:        true,
	}).Error)
	return mt
}

func (suite *BookingHandlerTestSuite) TestGetMeetingType() {
	suite.seedMeetingType()

	req, _ := http.NewRequest(http.MethodGet, "/book/intro-call", nil)
	rr := httptest.NewRecorder()
	suite.Router.ServeHTTP(rr, req)

	suite.Equal(http.StatusOK, rr.Code)
	var body models.MeetingType
	suite.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	suite.Equal("intro-call", body.Slug)
}

func (suite *BookingHandlerTestSuite) TestGetMeetingTypeNotFound() {
	req, _ := http.NewRequest(http.MethodGet, "/book/does-not-exist", nil)
	rr := httptest.NewRecorder()
	suite.Router.ServeHTTP(rr, req)

	suite.Equal(http.StatusNotFound, rr.Code)
}

func (suite *BookingHandlerTestSuite) TestGetSlotsRequiresValidDates() {
	suite.seedMeetingType()

	req, _ := http.NewRequest(http.MethodGet, "/book/intro-call/slots?startDate=not-a-date&endDate=2026-08-10", nil)
	rr := httptest.NewRecorder()
	suite.Router.ServeHTTP(rr, req)

	suite.Equal(http.StatusBadRequest, rr.Code)
}

func (suite *BookingHandlerTestSuite) TestGetSlotsReturnsCandidates() {
	suite.seedMeetingType()

	req, _ := http.NewRequest(http.MethodGet, "/book/intro-call/slots?startDate=2026-08-03&endDate=2026-08-09&timezone=America/New_York", nil)
	rr := httptest.NewRecorder()
	suite.Router.ServeHTTP(rr, req)

	suite.Equal(http.StatusOK, rr.Code)
	var body struct {
		Slots []service.Slot `json:"slots"`
	}
	suite.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	suite.NotEmpty(body.Slots)
}

func (suite *BookingHandlerTestSuite) TestCreateHoldRejectsInvalidBody() {
	suite.seedMeetingType()

	payload := map[string]any{
		"slotStart": time.Now().Add(time.Hour),
		"slotEnd":   time.Now().Add(30 * time.Minute), // before slotStart
		"email":     "not-an-email",
	}
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, "/book/intro-call/hold", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	suite.Router.ServeHTTP(rr, req)

	suite.Equal(http.StatusBadRequest, rr.Code)
}

func TestBookingHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(BookingHandlerTestSuite))
}
