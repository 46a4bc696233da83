package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/models"
	"github.com/bookwell/scheduling-core/internal/repository"
	"github.com/bookwell/scheduling-core/internal/service"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// WebhookServiceTestSuite runs against sqlite. ProcessWebhook's dedup path
// is a plain (provider, external_event_id) unique index plus an
// application-level "get, then insert-if-absent" check, none of which is
// Postgres-specific, and the fast-path cache runs through
// CacheRepository's in-process fallback since no Redis client is wired.
type WebhookServiceTestSuite struct {
	suite.Suite
	DB             *gorm.DB
	WebhookService *service.WebhookService
	Documents      *repository.DocumentRepository
	Publisher      *mockPublisher
}

func (suite *WebhookServiceTestSuite) SetupSuite() {
	testLogger := logger.New("error")
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	suite.Require().NoError(err)
	suite.DB = db

	suite.Require().NoError(db.AutoMigrate(&models.Document{}, &models.ProcessedWebhook{}))

	webhookRepo := repository.NewWebhookRepository(db)
	suite.Documents = repository.NewDocumentRepository(db)
	cacheRepo := repository.NewCacheRepository(nil)
	suite.Publisher = &mockPublisher{}

	suite.WebhookService = service.NewWebhookService(webhookRepo, suite.Documents, cacheRepo, suite.Publisher, "test-secret", false, testLogger)
}

func (suite *WebhookServiceTestSuite) TearDownSuite() {
	sqlDB, _ := suite.DB.DB()
	sqlDB.Close()
}

func (suite *WebhookServiceTestSuite) SetupTest() {
	suite.Publisher.reset()
	suite.DB.Exec("DELETE FROM documents")
	suite.DB.Exec("DELETE FROM processed_webhooks")
}

func (suite *WebhookServiceTestSuite) createDocument(holdID string) *models.Document {
	doc := &models.Document{
		HoldID:      holdID,
		Status:      models.DocumentStatusSent,
		SignerEmail: "guest@example.com",
		EnvelopeID:  "envelope-" + holdID, // distinct per test: the webhook id is "{envelope}:{event}"
	}
	suite.Require().NoError(suite.Documents.Create(context.Background(), doc))
	return doc
}

func (suite *WebhookServiceTestSuite) TestVerifySignatureRejectsMismatch() {
	err := suite.WebhookService.VerifySignature([]byte(`{"event":"document_completed"}`), "00")
	suite.Error(err)
}

func (suite *WebhookServiceTestSuite) TestProcessWebhookMarksDocumentSigned() {
	doc := suite.createDocument("hold-1")

	payload := service.SignwellPayload{Event: "document_completed"}
	payload.Document.ID = doc.EnvelopeID
	payload.CustomFields.HoldID = doc.HoldID

	response, err := suite.WebhookService.ProcessWebhook(context.Background(), payload)
	suite.Require().NoError(err)
	suite.NotEmpty(response)

	reloaded, err := suite.Documents.GetByHoldID(context.Background(), doc.HoldID)
	suite.Require().NoError(err)
	suite.Equal(models.DocumentStatusSigned, reloaded.Status)
	suite.Require().Len(suite.Publisher.events, 1)
	suite.Equal("nda.signed", suite.Publisher.events[0].subject)
}

// TestProcessWebhookIdempotentReplay confirms the second delivery of the
// same (document, event) pair replays the exact first response without
// re-dispatching (no second nda.signed publication).
func (suite *WebhookServiceTestSuite) TestProcessWebhookIdempotentReplay() {
	doc := suite.createDocument("hold-2")

	payload := service.SignwellPayload{Event: "document_completed"}
	payload.Document.ID = doc.EnvelopeID
	payload.CustomFields.HoldID = doc.HoldID

	first, err := suite.WebhookService.ProcessWebhook(context.Background(), payload)
	suite.Require().NoError(err)

	second, err := suite.WebhookService.ProcessWebhook(context.Background(), payload)
	suite.Require().NoError(err)

	suite.Equal(first, second)
	suite.Len(suite.Publisher.events, 1)
}

// TestProcessWebhookRejectsOutOfOrderDelivery confirms a document_sent
// webhook arriving after document_completed has already moved the
// document to signed does not move it backward to sent.
func (suite *WebhookServiceTestSuite) TestProcessWebhookRejectsOutOfOrderDelivery() {
	doc := suite.createDocument("hold-4")

	completed := service.SignwellPayload{Event: "document_completed"}
	completed.Document.ID = doc.EnvelopeID
	completed.CustomFields.HoldID = doc.HoldID
	_, err := suite.WebhookService.ProcessWebhook(context.Background(), completed)
	suite.Require().NoError(err)

	lateSent := service.SignwellPayload{Event: "document_sent"}
	lateSent.Document.ID = doc.EnvelopeID
	lateSent.CustomFields.HoldID = doc.HoldID
	_, err = suite.WebhookService.ProcessWebhook(context.Background(), lateSent)
	suite.Require().NoError(err)

	reloaded, err := suite.Documents.GetByHoldID(context.Background(), doc.HoldID)
	suite.Require().NoError(err)
	suite.Equal(models.DocumentStatusSigned, reloaded.Status)
	suite.Require().Len(suite.Publisher.events, 1) // only nda.signed, no nda.sent
}

func (suite *WebhookServiceTestSuite) TestProcessWebhookUnknownEventFails() {
	doc := suite.createDocument("hold-3")

	payload := service.SignwellPayload{Event: "document_declined"}
	payload.Document.ID = doc.EnvelopeID
	payload.CustomFields.HoldID = doc.HoldID

	_, err := suite.WebhookService.ProcessWebhook(context.Background(), payload)
	suite.Error(err)
}

func TestWebhookServiceTestSuite(t *testing.T) {
	suite.Run(t, new(WebhookServiceTestSuite))
}
