package billing

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hangarlinks/hangarlinks/app/models"
)

func newMockRepo(t *testing.T) (*gormRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return &gormRepository{db: db, now: fixedNow}, mock
}

func TestRepository_WebhookEventRedelivery(t *testing.T) {
	repo, mock := newMockRepo(t)
	selectEvent := regexp.QuoteMeta("SELECT * FROM `billing_webhook_events` WHERE provider = ? AND provider_event_id = ?")
	stored := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "provider", "provider_event_id", "event_type"}).
			AddRow(3, "stripe", "evt_1", "ping")
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `billing_webhook_events`")).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery(selectEvent).WillReturnRows(stored())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `billing_webhook_events`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectEvent).WillReturnRows(stored())

	created, ev, err := repo.CreateWebhookEventIfNotExists(&models.BillingWebhookEvent{Provider: "stripe", ProviderEventID: "evt_1", EventType: "ping"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint(3), ev.ID)

	created, ev, err = repo.CreateWebhookEventIfNotExists(&models.BillingWebhookEvent{Provider: "stripe", ProviderEventID: "evt_1", EventType: "ping"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, uint(3), ev.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkWebhookProcessed(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `billing_webhook_events` SET")).
		WithArgs(sqlmock.AnyArg(), "boom", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkWebhookProcessed(3, "boom"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictOn(t *testing.T) {
	cols := conflictOn(subscriptionKey)
	require.Len(t, cols, 2)
	assert.Equal(t, "provider_subscription_id", cols[1].Name)
}
