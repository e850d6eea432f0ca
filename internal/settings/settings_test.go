package settings

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"graphwise-relay/internal/common/config"
	"graphwise-relay/internal/common/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func baseSnapshot() Snapshot {
	return Snapshot{
		HubSpotToken:            "pat-eu1-base-token-1234",
		PortalID:                "145000",
		FormID:                  "form-1",
		PropertyCourseCompleted: "course_completed",
		PropertyCompletedAt:     "completed_at",
		ThankYouSlug:            "thank-you",
		WebhookSecret:           "hook-secret-9876",
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.HubSpot.Token = "pat"
	cfg.HubSpot.PortalID = "1"
	cfg.Properties.CourseCompleted = "course_completed"
	cfg.Properties.CompletedAt = "completed_at"
	cfg.Relay.ThankYouSlug = "thanks"
	cfg.Relay.WebhookSecret = "s"

	snap := FromConfig(cfg)
	assert.Equal(t, "pat", snap.HubSpotToken)
	assert.Equal(t, "thanks", snap.ThankYouSlug)
	assert.NoError(t, snap.Validate())
}

func TestSnapshot_With(t *testing.T) {
	base := baseSnapshot()

	tests := []struct {
		name    string
		changes map[string]string
		check   func(t *testing.T, s Snapshot)
		wantErr bool
	}{
		{
			name:    "partial update",
			changes: map[string]string{KeyHubSpotToken: "  pat-new  ", KeyFormID: "form-2"},
			check: func(t *testing.T, s Snapshot) {
				assert.Equal(t, "pat-new", s.HubSpotToken)
				assert.Equal(t, "form-2", s.FormID)
				assert.Equal(t, base.PortalID, s.PortalID)
			},
		},
		{
			name:    "unknown key",
			changes: map[string]string{"api_url": "x"},
			wantErr: true,
		},
		{
			name:    "empty property name",
			changes: map[string]string{KeyPropertyCourseCompleted: ""},
			wantErr: true,
		},
		{
			name:    "slug with slash",
			changes: map[string]string{KeyThankYouSlug: "a/b"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := base.With(tt.changes)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, base, next)
				return
			}
			require.NoError(t, err)
			tt.check(t, next)
		})
	}

	_, err := base.With(map[string]string{"nope": "x"})
	var unknown *UnknownKeyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Key)
	assert.Equal(t, "pat-eu1-base-token-1234", base.HubSpotToken, "receiver stays unchanged")
}

func TestSnapshot_Masked(t *testing.T) {
	masked := baseSnapshot().Masked()
	assert.Equal(t, "••••1234", masked[KeyHubSpotToken])
	assert.Equal(t, "••••9876", masked[KeyWebhookSecret])
	assert.Equal(t, "145000", masked[KeyPortalID])
	assert.Len(t, masked, len(Keys()))

	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "••••", Mask("abc"))
}

func TestSource_ReloadAndUpdate(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), map[string]string{
		KeyHubSpotToken: "pat-stored",
		"legacy_option": "ignored",
	}))

	src := NewSource(baseSnapshot(), store, logger.NewNoOpLogger())
	assert.Equal(t, "pat-eu1-base-token-1234", src.Current().HubSpotToken)

	require.NoError(t, src.Reload(context.Background()))
	assert.Equal(t, "pat-stored", src.Current().HubSpotToken)
	assert.Equal(t, "form-1", src.Current().FormID)

	before := src.Current()
	next, err := src.Update(context.Background(), map[string]string{KeyFormID: "form-9"})
	require.NoError(t, err)
	assert.Equal(t, "form-9", next.FormID)
	assert.Equal(t, "form-9", src.Current().FormID)
	assert.Equal(t, "form-1", before.FormID, "earlier snapshots are not mutated")

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "form-9", stored[KeyFormID])

	_, err = src.Update(context.Background(), map[string]string{"bogus": "1"})
	require.Error(t, err)
	stored, _ = store.Load(context.Background())
	assert.NotContains(t, stored, "bogus")
}

type failingStore struct{}

func (failingStore) Load(context.Context) (map[string]string, error) {
	return nil, errors.New("db down")
}

func (failingStore) Save(context.Context, map[string]string) error {
	return errors.New("db down")
}

func TestSource_StoreFailureKeepsSnapshot(t *testing.T) {
	src := NewSource(baseSnapshot(), failingStore{}, logger.NewNoOpLogger())

	require.Error(t, src.Reload(context.Background()))
	_, err := src.Update(context.Background(), map[string]string{KeyFormID: "form-9"})
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "form-1", src.Current().FormID)
}

func TestSource_ConcurrentReaders(t *testing.T) {
	src := NewSource(baseSnapshot(), nil, logger.NewNoOpLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := src.Current()
				assert.NotEmpty(t, snap.PropertyCourseCompleted)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := src.Update(context.Background(), map[string]string{KeyPortalID: "p"})
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestPostgresStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	ctx := context.Background()

	t.Run("ensure schema", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS graphwise_options")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		require.NoError(t, store.EnsureSchema(ctx))
	})

	t.Run("load", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectOptions)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
				AddRow(KeyHubSpotToken, "pat-db").
				AddRow(KeyThankYouSlug, "danke"))

		values, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{KeyHubSpotToken: "pat-db", KeyThankYouSlug: "danke"}, values)
	})

	t.Run("save upserts in key order inside one transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO graphwise_options")).
			WithArgs(KeyFormID, "form-2").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO graphwise_options")).
			WithArgs(KeyHubSpotToken, "pat-2").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.Save(ctx, map[string]string{KeyHubSpotToken: "pat-2", KeyFormID: "form-2"}))
	})

	t.Run("save rolls back on failure", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO graphwise_options")).
			WithArgs(KeyFormID, "form-3").WillReturnError(errors.New("constraint"))
		mock.ExpectRollback()

		err := store.Save(ctx, map[string]string{KeyFormID: "form-3"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upsert setting form_id")
	})

	t.Run("empty save is a no-op", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, nil))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
