package evidence

import (
	"context"

	"github.com/google/uuid"

	"github.com/ajharbinger/moat-scoring/internal/graph"
	"github.com/ajharbinger/moat-scoring/internal/logger"
	"github.com/ajharbinger/moat-scoring/internal/models"
	"github.com/ajharbinger/moat-scoring/internal/scoring"
	"github.com/ajharbinger/moat-scoring/internal/scraper"
)

// CompanyReader is the slice of the company repository the collector needs.
type CompanyReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	GetCertifications(ctx context.Context, companyID uuid.UUID) ([]models.Certification, error)
}

// Collector assembles the scoring evidence for a company. It only reads.
type Collector struct {
	companies CompanyReader
	graph     graph.Source
	log       logger.Logger
}

// NewCollector builds a collector. src may be nil when no graph is configured.
func NewCollector(companies CompanyReader, src graph.Source, log logger.Logger) *Collector {
	if log == nil {
		log = logger.NewNop()
	}
	return &Collector{companies: companies, graph: src, log: log}
}

// Collect loads the company, its certifications and the optional graph
// signal. A missing company surfaces the repository's NOT_FOUND error.
func (c *Collector) Collect(ctx context.Context, companyID uuid.UUID) (scoring.Evidence, error) {
	company, err := c.companies.GetByID(ctx, companyID)
	if err != nil {
		return scoring.Evidence{}, err
	}

	certs, err := c.companies.GetCertifications(ctx, companyID)
	if err != nil {
		return scoring.Evidence{}, err
	}

	ev := FromCompany(company, certs)
	ev.GraphCentrality = c.centrality(ctx, companyID)
	return ev, nil
}

func (c *Collector) centrality(ctx context.Context, companyID uuid.UUID) *float64 {
	if isNilSource(c.graph) {
		return nil
	}
	value, err := c.graph.Centrality(ctx, companyID)
	if err != nil {
		c.log.Warn("graph signal unavailable, treating as absent",
			"company_id", companyID.String(), "error", err.Error())
		return nil
	}
	return value
}

// FromCompany maps stored company fields onto scoring evidence. Website
// text is reduced to plain text whether it was stored as HTML or not.
func FromCompany(company *models.Company, certs []models.Certification) scoring.Evidence {
	types := make([]string, 0, len(certs))
	for _, cert := range certs {
		types = append(types, cert.CertType)
	}

	return scoring.Evidence{
		CompanyID:      company.ID,
		Name:           company.Name,
		Sector:         company.Sector,
		Country:        company.Country,
		Description:    company.Description,
		WebsiteText:    scraper.ExtractText(company.RawWebsiteText),
		Certifications: types,
		Revenue:        company.Revenue,
		EBITDAMargin:   company.EBITDAMargin,
		EmployeeCount:  company.EmployeeCount,
	}
}

// isNilSource catches a typed nil *graph.Neo4jSource stored in the interface,
// which is what NewNeo4jSource returns when the graph is disabled.
func isNilSource(src graph.Source) bool {
	if src == nil {
		return true
	}
	if neo, ok := src.(*graph.Neo4jSource); ok && neo == nil {
		return true
	}
	return false
}
