package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bookwell/scheduling-core/internal/models"
)

func TestDocumentStatusCanAdvanceTo(t *testing.T) {
	assert.True(t, models.DocumentStatusPending.CanAdvanceTo(models.DocumentStatusSent))
	assert.True(t, models.DocumentStatusSent.CanAdvanceTo(models.DocumentStatusSigned))
	assert.True(t, models.DocumentStatusSigned.CanAdvanceTo(models.DocumentStatusExpired))

	assert.False(t, models.DocumentStatusSigned.CanAdvanceTo(models.DocumentStatusSent))
	assert.False(t, models.DocumentStatusSent.CanAdvanceTo(models.DocumentStatusPending))
	assert.False(t, models.DocumentStatusSigned.CanAdvanceTo(models.DocumentStatusSigned))
}
