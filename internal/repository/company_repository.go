package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/ajharbinger/moat-scoring/internal/errors"
	"github.com/ajharbinger/moat-scoring/internal/models"
)

const companyColumns = `
	id, name, sector, country, description, website, raw_website_text,
	revenue, ebitda_margin, employee_count,
	moat_score, tier, moat_attributes, scoring_status, last_scored_at,
	created_at, updated_at`

// companyRepository implements CompanyRepository
type companyRepository struct {
	db dbExecutor
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db dbExecutor) CompanyRepository {
	return &companyRepository{db: db}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompany(row rowScanner) (*models.Company, error) {
	company := &models.Company{}
	var (
		employees  sql.NullInt64
		score      sql.NullInt64
		tier       sql.NullString
		attributes []byte
		lastScored sql.NullTime
	)

	err := row.Scan(
		&company.ID, &company.Name, &company.Sector, &company.Country,
		&company.Description, &company.Website, &company.RawWebsiteText,
		&company.Revenue, &company.EBITDAMargin, &employees,
		&score, &tier, &attributes, &company.ScoringStatus, &lastScored,
		&company.CreatedAt, &company.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if employees.Valid {
		n := int(employees.Int64)
		company.EmployeeCount = &n
	}
	if score.Valid {
		n := int(score.Int64)
		company.MoatScore = &n
	}
	if tier.Valid {
		t, err := models.ParseTier(tier.String)
		if err != nil {
			return nil, err
		}
		company.Tier = &t
	}
	if attributes != nil {
		attrs := &models.MoatAttributes{}
		if err := attrs.Scan(attributes); err != nil {
			return nil, fmt.Errorf("failed to decode moat attributes: %w", err)
		}
		company.MoatAttributes = attrs
	}
	if lastScored.Valid {
		t := lastScored.Time.UTC()
		company.LastScoredAt = &t
	}
	return company, nil
}

// GetByID retrieves a company by ID
func (r *companyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	return r.getOne(ctx, "repository.Company.GetByID", query, id)
}

// GetForUpdate retrieves a company and takes a row lock on it
func (r *companyRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "repository.Company.GetForUpdate", query, id)
}

func (r *companyRepository) getOne(ctx context.Context, op, query string, id uuid.UUID) (*models.Company, error) {
	company, err := scanCompany(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("company %s not found", id), err).WithOperation(op)
		}
		return nil, apperrors.DatabaseError("failed to get company", err).WithOperation(op)
	}
	return company, nil
}

// Create inserts a new company in the not_scored state
func (r *companyRepository) Create(ctx context.Context, company *models.Company) error {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	if company.ScoringStatus == "" {
		company.ScoringStatus = models.StatusNotScored
	}

	query := `
		INSERT INTO companies (id, name, sector, country, description, website,
			raw_website_text, revenue, ebitda_margin, employee_count, scoring_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		company.ID, company.Name, company.Sector, company.Country, company.Description,
		company.Website, company.RawWebsiteText, company.Revenue, company.EBITDAMargin,
		nullableInt(company.EmployeeCount), company.ScoringStatus,
	).Scan(&company.CreatedAt, &company.UpdatedAt)
	if err != nil {
		return apperrors.DatabaseError("failed to create company", err).WithOperation("repository.Company.Create")
	}
	return nil
}

// Exists reports whether a company row is present
func (r *companyRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM companies WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, apperrors.DatabaseError("failed to check company", err).WithOperation("repository.Company.Exists")
	}
	return exists, nil
}

// UpdateScoringState writes only the scoring fields of a company
func (r *companyRepository) UpdateScoringState(ctx context.Context, company *models.Company) error {
	const op = "repository.Company.UpdateScoringState"
	if err := company.CheckScoringState(); err != nil {
		return apperrors.InvariantViolation("refusing inconsistent scoring state", err).WithOperation(op)
	}

	var tier interface{}
	if company.Tier != nil {
		tier = string(*company.Tier)
	}
	var attributes interface{}
	if company.MoatAttributes != nil {
		attributes = *company.MoatAttributes
	}
	var lastScored interface{}
	if company.LastScoredAt != nil {
		lastScored = *company.LastScoredAt
	}

	query := `
		UPDATE companies
		SET moat_score = $2, tier = $3, moat_attributes = $4,
			scoring_status = $5, last_scored_at = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		company.ID, nullableInt(company.MoatScore), tier, attributes,
		company.ScoringStatus, lastScored,
	)
	if err != nil {
		return apperrors.DatabaseError("failed to update scoring state", err).WithOperation(op)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.DatabaseError("failed to read affected rows", err).WithOperation(op)
	}
	if rows == 0 {
		return apperrors.NotFound(fmt.Sprintf("company %s not found", company.ID), nil).WithOperation(op)
	}
	return nil
}

// ListDueForScoring returns never-scored companies first, then the stalest
func (r *companyRepository) ListDueForScoring(ctx context.Context, criteria DueCriteria) ([]uuid.UUID, error) {
	limit := criteria.Limit
	if limit <= 0 {
		limit = 100
	}

	var scoredBefore interface{}
	if !criteria.ScoredBefore.IsZero() {
		scoredBefore = criteria.ScoredBefore.UTC()
	}

	query := `
		SELECT id FROM companies
		WHERE scoring_status = 'not_scored'
		   OR ($1::timestamptz IS NOT NULL AND last_scored_at < $1::timestamptz)
		ORDER BY last_scored_at ASC NULLS FIRST, created_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, scoredBefore, limit)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list companies due for scoring", err).
			WithOperation("repository.Company.ListDueForScoring")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate companies: %w", err)
	}
	return ids, nil
}

// CountByStatus returns the number of companies in each scoring status
func (r *companyRepository) CountByStatus(ctx context.Context) (map[models.ScoringStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT scoring_status, COUNT(*) FROM companies GROUP BY scoring_status`)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to count companies", err).
			WithOperation("repository.Company.CountByStatus")
	}
	defer rows.Close()

	counts := map[models.ScoringStatus]int{
		models.StatusNotScored:        0,
		models.StatusInsufficientData: 0,
		models.StatusScored:           0,
	}
	for rows.Next() {
		var status models.ScoringStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}
	return counts, nil
}

// GetCertifications lists certifications ordered by type
func (r *companyRepository) GetCertifications(ctx context.Context, companyID uuid.UUID) ([]models.Certification, error) {
	query := `
		SELECT id, company_id, cert_type, scope, created_at
		FROM certifications
		WHERE company_id = $1
		ORDER BY cert_type ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to get certifications", err).
			WithOperation("repository.Company.GetCertifications")
	}
	defer rows.Close()

	var certs []models.Certification
	for rows.Next() {
		var cert models.Certification
		var scope sql.NullString
		if err := rows.Scan(&cert.ID, &cert.CompanyID, &cert.CertType, &scope, &cert.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan certification: %w", err)
		}
		if scope.Valid {
			s := scope.String
			cert.Scope = &s
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate certifications: %w", err)
	}
	return certs, nil
}

// AddCertification attaches a certification to a company
func (r *companyRepository) AddCertification(ctx context.Context, cert *models.Certification) error {
	if cert.ID == uuid.Nil {
		cert.ID = uuid.New()
	}

	var scope interface{}
	if cert.Scope != nil {
		scope = *cert.Scope
	}

	query := `
		INSERT INTO certifications (id, company_id, cert_type, scope)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err := r.db.QueryRowContext(ctx, query, cert.ID, cert.CompanyID, cert.CertType, scope).Scan(&cert.CreatedAt); err != nil {
		return apperrors.DatabaseError("failed to add certification", err).
			WithOperation("repository.Company.AddCertification")
	}
	return nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}
