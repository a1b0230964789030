package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/moat-scoring/internal/models"
)

// CompanyRepository defines the interface for company data operations
type CompanyRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	// GetForUpdate locks the company row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Company, error)
	Create(ctx context.Context, company *models.Company) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateScoringState(ctx context.Context, company *models.Company) error
	ListDueForScoring(ctx context.Context, criteria DueCriteria) ([]uuid.UUID, error)
	CountByStatus(ctx context.Context) (map[models.ScoringStatus]int, error)

	GetCertifications(ctx context.Context, companyID uuid.UUID) ([]models.Certification, error)
	AddCertification(ctx context.Context, cert *models.Certification) error
}

// ScoringRepository defines the interface for the append-only scoring history
type ScoringRepository interface {
	AppendEvent(ctx context.Context, event *models.ScoringEvent) error
	ListEvents(ctx context.Context, companyID uuid.UUID, limit int) ([]models.ScoringEvent, error)
	CountEvents(ctx context.Context, companyID uuid.UUID) (int, error)
	// LatestEventTime returns nil when the company has no history.
	LatestEventTime(ctx context.Context, companyID uuid.UUID) (*time.Time, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(repos *Repositories) error) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Company CompanyRepository
	Scoring ScoringRepository
	Tx      TransactionManager
}
