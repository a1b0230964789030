package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ajharbinger/moat-scoring/internal/errors"
	"github.com/ajharbinger/moat-scoring/internal/models"
	"github.com/ajharbinger/moat-scoring/internal/repository"
)

// CompanyService registers companies for scoring and reads them back.
type CompanyService interface {
	Create(ctx context.Context, input CompanyInput) (*CompanyDetail, error)
	Get(ctx context.Context, id uuid.UUID) (*CompanyDetail, error)
}

// CompanyInput is the registration payload. Scoring fields are never
// accepted from callers.
type CompanyInput struct {
	Name           string           `json:"name" binding:"required"`
	Sector         string           `json:"sector"`
	Country        string           `json:"country"`
	Description    string           `json:"description"`
	Website        string           `json:"website"`
	WebsiteText    string           `json:"website_text"`
	Revenue        *decimal.Decimal `json:"revenue"`
	EBITDAMargin   *decimal.Decimal `json:"ebitda_margin"`
	EmployeeCount  *int             `json:"employee_count"`
	Certifications []string         `json:"certifications"`
}

// CompanyDetail is a company with its certifications.
type CompanyDetail struct {
	models.Company
	Certifications []models.Certification `json:"certifications"`
}

type companyServiceImpl struct {
	repos *repository.Repositories
}

// NewCompanyService creates a company service on top of repos.
func NewCompanyService(repos *repository.Repositories) CompanyService {
	return &companyServiceImpl{repos: repos}
}

func (s *companyServiceImpl) Create(ctx context.Context, input CompanyInput) (*CompanyDetail, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	company := &models.Company{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(input.Name),
		Sector:         strings.TrimSpace(input.Sector),
		Country:        strings.TrimSpace(input.Country),
		Description:    strings.TrimSpace(input.Description),
		Website:        strings.TrimSpace(input.Website),
		RawWebsiteText: input.WebsiteText,
		EmployeeCount:  input.EmployeeCount,
		ScoringStatus:  models.StatusNotScored,
	}
	if input.Revenue != nil {
		company.Revenue = decimal.NewNullDecimal(*input.Revenue)
	}
	if input.EBITDAMargin != nil {
		company.EBITDAMargin = decimal.NewNullDecimal(*input.EBITDAMargin)
	}

	detail := &CompanyDetail{}
	err := s.repos.Tx.WithTransaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Company.Create(ctx, company); err != nil {
			return err
		}
		for _, certType := range dedupeCertifications(input.Certifications) {
			cert := &models.Certification{CompanyID: company.ID, CertType: certType}
			if err := tx.Company.AddCertification(ctx, cert); err != nil {
				return err
			}
			detail.Certifications = append(detail.Certifications, *cert)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail.Company = *company
	if detail.Certifications == nil {
		detail.Certifications = []models.Certification{}
	}
	return detail, nil
}

func (s *companyServiceImpl) Get(ctx context.Context, id uuid.UUID) (*CompanyDetail, error) {
	company, err := s.repos.Company.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	certs, err := s.repos.Company.GetCertifications(ctx, id)
	if err != nil {
		return nil, err
	}
	if certs == nil {
		certs = []models.Certification{}
	}
	return &CompanyDetail{Company: *company, Certifications: certs}, nil
}

func (in CompanyInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.InvalidInput("name is required", nil).WithOperation("CompanyService.Create")
	}
	if in.EmployeeCount != nil && *in.EmployeeCount < 0 {
		return errors.InvalidInput("employee_count must not be negative", nil).WithOperation("CompanyService.Create")
	}
	if in.Revenue != nil && in.Revenue.IsNegative() {
		return errors.InvalidInput("revenue must not be negative", nil).WithOperation("CompanyService.Create")
	}
	return nil
}

// dedupeCertifications trims entries and drops blanks and repeats while
// keeping the caller's spelling.
func dedupeCertifications(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range in {
		c = strings.TrimSpace(c)
		key := strings.ToUpper(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
