package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ajharbinger/moat-scoring/internal/errors"
	"github.com/ajharbinger/moat-scoring/internal/models"
)

// openTestDB connects to a migrated database named by TEST_DATABASE_URL.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	if err := db.Ping(); err != nil {
		t.Skipf("database not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, normalizeLimit(0))
	assert.Equal(t, DefaultHistoryLimit, normalizeLimit(-3))
	assert.Equal(t, 7, normalizeLimit(7))
	assert.Equal(t, MaxHistoryLimit, normalizeLimit(MaxHistoryLimit+1))
}

func TestCompanyRepository_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(db)

	employees := 120
	company := &models.Company{Name: "Precision Castings Ltd", Sector: "Manufacturing", EmployeeCount: &employees}
	require.NoError(t, repos.Company.Create(ctx, company))
	require.NoError(t, repos.Company.AddCertification(ctx, &models.Certification{CompanyID: company.ID, CertType: "ISO9001"}))
	require.NoError(t, repos.Company.AddCertification(ctx, &models.Certification{CompanyID: company.ID, CertType: "AS9100D"}))

	got, err := repos.Company.GetByID(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotScored, got.ScoringStatus)
	assert.Nil(t, got.MoatScore)
	assert.Equal(t, 120, *got.EmployeeCount)

	certs, err := repos.Company.GetCertifications(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "AS9100D", certs[0].CertType)

	due, err := repos.Company.ListDueForScoring(ctx, DueCriteria{Limit: 1000})
	require.NoError(t, err)
	assert.Contains(t, due, company.ID)
}

func TestCompanyRepository_GetByIDNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := NewCompanyRepository(db).GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestCompanyRepository_UpdateScoringStateRejectsInconsistentState(t *testing.T) {
	score := 50
	company := &models.Company{ID: uuid.New(), ScoringStatus: models.StatusNotScored, MoatScore: &score}

	// The check runs before any SQL, so no database is needed.
	err := NewCompanyRepository(nil).UpdateScoringState(context.Background(), company)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvariantViolation))
}

func TestScoringRepository_AppendAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(db)

	company := &models.Company{Name: "Harbour Logistics"}
	require.NoError(t, repos.Company.Create(ctx, company))

	latest, err := repos.Scoring.LatestEventTime(ctx, company.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first := time.Now().UTC().Truncate(time.Microsecond)
	previous, delta := 40, 15
	events := []*models.ScoringEvent{
		{CompanyID: company.ID, MoatScore: 40, Tier: models.Tier2, Trigger: models.TriggerInitial, ScoredAt: first},
		{CompanyID: company.ID, MoatScore: 55, Tier: models.Tier2, Trigger: models.TriggerRescan, ScoredAt: first.Add(time.Second),
			PreviousScore: &previous, ScoreDelta: &delta},
	}
	err = repos.Tx.WithTransaction(ctx, func(tx *Repositories) error {
		for _, e := range events {
			if err := tx.Scoring.AppendEvent(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	listed, err := repos.Scoring.ListEvents(ctx, company.ID, 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, 55, listed[0].MoatScore)
	assert.Equal(t, 15, *listed[0].ScoreDelta)
	assert.Nil(t, listed[1].PreviousScore)

	count, err := repos.Scoring.CountEvents(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	latest, err = repos.Scoring.LatestEventTime(ctx, company.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(first.Add(time.Second)))

	_, err = db.ExecContext(ctx, `UPDATE scoring_events SET moat_score = 0 WHERE company_id = $1`, company.ID)
	assert.Error(t, err)
}
