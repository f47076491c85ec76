package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/persistence"
	"github.com/spec-kit/deal-portal/internal/repository"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("deals"),
		postgres.WithUsername("deals"),
		postgres.WithPassword("deals"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrations := filepath.Join("..", "..", "migrations")
	require.NoError(t, persistence.RunMigrations(ctx, pool, migrations, zaptest.NewLogger(t)))
	return pool
}

func seedProfile(t *testing.T, ctx context.Context, repo repository.ProfileRepository, role domain.Role) domain.Profile {
	t.Helper()
	id := uuid.NewString()
	profile := domain.Profile{
		ID:       id,
		Email:    id + "@example.com",
		FullName: "Profile " + id[:8],
		Role:     role,
	}
	require.NoError(t, repo.Upsert(ctx, &profile))
	return profile
}

func TestDealWorkflowPersistence_Integration(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	profiles := repository.NewProfileRepository(pool)
	broker := seedProfile(t, ctx, profiles, domain.RoleBroker)
	admin := seedProfile(t, ctx, profiles, domain.RoleAdmin)

	admins, err := profiles.ListByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, admin.Email, admins[0].Email)

	tx := repository.NewTransactor(pool)
	deal := &domain.Deal{
		BrokerID:          broker.ID,
		DealType:          domain.DealTypeEquipmentFinance,
		Status:            domain.DealStatusSubmitted,
		FundingAmount:     decimal.RequireFromString("125000.50"),
		LegalBusinessName: "Acme Excavation LLC",
		DealDetails:       map[string]any{"equipment_type": "excavator"},
		SubmittedAt:       time.Now().UTC(),
	}
	require.NoError(t, tx.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		if err := repos.Deals.Create(ctx, deal); err != nil {
			return err
		}
		return repos.History.Append(ctx, &domain.StatusHistoryEntry{DealID: deal.ID, NewStatus: domain.DealStatusSubmitted})
	}))

	deals := repository.NewDealRepository(pool)
	loaded, err := deals.GetByID(ctx, deal.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("125000.50").Equal(loaded.FundingAmount))
	assert.Equal(t, "excavator", loaded.DealDetails["equipment_type"])
	assert.EqualValues(t, 1, loaded.Version)

	version, err := deals.UpdateStatus(ctx, deal.ID, domain.DealStatusUnderReview, time.Now().UTC(), loaded.Version)
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)

	_, err = deals.UpdateStatus(ctx, deal.ID, domain.DealStatusFunded, time.Now().UTC(), loaded.Version)
	assert.ErrorIs(t, err, repository.ErrVersionMismatch)

	_, err = deals.UpdateStatus(ctx, uuid.NewString(), domain.DealStatusFunded, time.Now().UTC(), 1)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	old := domain.DealStatusSubmitted
	history := repository.NewStatusHistoryRepository(pool)
	require.NoError(t, history.Append(ctx, &domain.StatusHistoryEntry{
		DealID:    deal.ID,
		OldStatus: &old,
		NewStatus: domain.DealStatusUnderReview,
		ChangedBy: &admin.ID,
	}))

	oldestFirst, err := history.ListByDeal(ctx, deal.ID, domain.HistoryOldestFirst)
	require.NoError(t, err)
	require.Len(t, oldestFirst, 2)
	assert.Nil(t, oldestFirst[0].OldStatus)
	assert.Equal(t, domain.DealStatusUnderReview, oldestFirst[1].NewStatus)

	newestFirst, err := history.ListByDeal(ctx, deal.ID, domain.HistoryNewestFirst)
	require.NoError(t, err)
	assert.Equal(t, oldestFirst[1].ID, newestFirst[0].ID)

	_, err = pool.Exec(ctx, `DELETE FROM status_history WHERE deal_id=$1`, deal.ID)
	require.Error(t, err, "status_history must reject deletes")
}

func TestTransactorRollsBackOnError_Integration(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	broker := seedProfile(t, ctx, repository.NewProfileRepository(pool), domain.RoleBroker)
	tx := repository.NewTransactor(pool)

	var createdID string
	boom := errors.New("history append failed")
	err := tx.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		deal := &domain.Deal{
			BrokerID:          broker.ID,
			DealType:          domain.DealTypeTermLoan,
			Status:            domain.DealStatusSubmitted,
			FundingAmount:     decimal.NewFromInt(50000),
			LegalBusinessName: "Rollback Co",
			SubmittedAt:       time.Now().UTC(),
		}
		if err := repos.Deals.Create(ctx, deal); err != nil {
			return err
		}
		createdID = deal.ID
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NotEmpty(t, createdID)

	_, err = repository.NewDealRepository(pool).GetByID(ctx, createdID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestDealMessages_Integration(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	profiles := repository.NewProfileRepository(pool)
	broker := seedProfile(t, ctx, profiles, domain.RoleBroker)

	deal := &domain.Deal{
		BrokerID:          broker.ID,
		DealType:          domain.DealTypeLineOfCredit,
		Status:            domain.DealStatusSubmitted,
		FundingAmount:     decimal.NewFromInt(10000),
		LegalBusinessName: "Chat Co",
		SubmittedAt:       time.Now().UTC(),
	}
	require.NoError(t, repository.NewDealRepository(pool).Create(ctx, deal))

	messages := repository.NewDealMessageRepository(pool)
	msg := &domain.DealMessage{DealID: deal.ID, SenderID: broker.ID, SenderRole: domain.RoleBroker, Body: "Bank statements uploaded"}
	require.NoError(t, messages.Create(ctx, msg))
	assert.NotEmpty(t, msg.ID)

	listed, err := messages.ListByDeal(ctx, deal.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Bank statements uploaded", listed[0].Body)
}

func TestDealAdminFields_Integration(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	broker := seedProfile(t, ctx, repository.NewProfileRepository(pool), domain.RoleBroker)
	deals := repository.NewDealRepository(pool)
	deal := &domain.Deal{
		BrokerID:          broker.ID,
		DealType:          domain.DealTypeRealEstate,
		Status:            domain.DealStatusSubmitted,
		FundingAmount:     decimal.NewFromInt(900000),
		LegalBusinessName: "Harbor Holdings",
		SubmittedAt:       time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, deals.Create(ctx, deal))
	before, err := deals.GetByID(ctx, deal.ID)
	require.NoError(t, err)

	notes := "Strong collateral"
	require.NoError(t, deals.UpdateAdminNotes(ctx, deal.ID, &notes))
	lenderNotes := "Prefers CRE"
	require.NoError(t, deals.UpdateLenderScore(ctx, deal.ID, "First Harbor Bank", 82, &lenderNotes))

	after, err := deals.GetByID(ctx, deal.ID)
	require.NoError(t, err)
	require.NotNil(t, after.AdminNotes)
	assert.Equal(t, notes, *after.AdminNotes)
	require.NotNil(t, after.LenderFitScore)
	assert.Equal(t, 82, *after.LenderFitScore)
	assert.Equal(t, "First Harbor Bank", *after.RecommendedLender)
	assert.Equal(t, lenderNotes, *after.LenderNotes)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Status, after.Status)
	assert.True(t, before.LastStatusChange.Equal(after.LastStatusChange))

	assert.ErrorIs(t, deals.UpdateAdminNotes(ctx, uuid.NewString(), &notes), pgx.ErrNoRows)
	assert.ErrorIs(t, deals.UpdateLenderScore(ctx, uuid.NewString(), "x", 1, nil), pgx.ErrNoRows)
	assert.Error(t, deals.UpdateLenderScore(ctx, deal.ID, "x", 101, nil), "score outside 0-100 violates the check")
}
