package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ajharbinger/moat-scoring/internal/errors"
	"github.com/ajharbinger/moat-scoring/internal/models"
	"github.com/ajharbinger/moat-scoring/internal/repository"
)

// memoryStore backs the repository interfaces for service tests. A
// transaction holds txMu for its whole duration, which stands in for the
// row lock, and restores the previous state when fn fails.
type memoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	companies map[uuid.UUID]models.Company
	certs     map[uuid.UUID][]models.Certification
	events    map[uuid.UUID][]models.ScoringEvent

	appendErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		companies: map[uuid.UUID]models.Company{},
		certs:     map[uuid.UUID][]models.Certification{},
		events:    map[uuid.UUID][]models.ScoringEvent{},
	}
}

func (s *memoryStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		Company: &memCompanies{s},
		Scoring: &memEvents{s},
		Tx:      &memTx{s},
	}
}

func (s *memoryStore) addCompany(c models.Company, certTypes ...string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.ScoringStatus == "" {
		c.ScoringStatus = models.StatusNotScored
	}
	s.companies[c.ID] = c
	for _, ct := range certTypes {
		s.certs[c.ID] = append(s.certs[c.ID], models.Certification{ID: uuid.New(), CompanyID: c.ID, CertType: ct})
	}
	return c.ID
}

func (s *memoryStore) company(id uuid.UUID) models.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.companies[id]
}

func (s *memoryStore) eventCount(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events[id])
}

type memCompanies struct{ s *memoryStore }

func (m *memCompanies) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.companies[id]
	if !ok {
		return nil, apperrors.NotFound("company not found", nil)
	}
	return &c, nil
}

func (m *memCompanies) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return m.GetByID(ctx, id)
}

func (m *memCompanies) Create(ctx context.Context, company *models.Company) error {
	company.ID = m.s.addCompany(*company)
	return nil
}

func (m *memCompanies) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.companies[id]
	return ok, nil
}

func (m *memCompanies) UpdateScoringState(ctx context.Context, company *models.Company) error {
	if err := company.CheckScoringState(); err != nil {
		return apperrors.InvariantViolation("refusing inconsistent scoring state", err)
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.companies[company.ID]; !ok {
		return apperrors.NotFound("company not found", nil)
	}
	m.s.companies[company.ID] = *company
	return nil
}

func (m *memCompanies) ListDueForScoring(ctx context.Context, criteria repository.DueCriteria) ([]uuid.UUID, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var ids []uuid.UUID
	for id, c := range m.s.companies {
		due := c.ScoringStatus == models.StatusNotScored ||
			(!criteria.ScoredBefore.IsZero() && c.LastScoredAt != nil && c.LastScoredAt.Before(criteria.ScoredBefore))
		if due {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if criteria.Limit > 0 && len(ids) > criteria.Limit {
		ids = ids[:criteria.Limit]
	}
	return ids, nil
}

func (m *memCompanies) CountByStatus(ctx context.Context) (map[models.ScoringStatus]int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	counts := map[models.ScoringStatus]int{}
	for _, c := range m.s.companies {
		counts[c.ScoringStatus]++
	}
	return counts, nil
}

func (m *memCompanies) GetCertifications(ctx context.Context, companyID uuid.UUID) ([]models.Certification, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]models.Certification(nil), m.s.certs[companyID]...), nil
}

func (m *memCompanies) AddCertification(ctx context.Context, cert *models.Certification) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.certs[cert.CompanyID] = append(m.s.certs[cert.CompanyID], *cert)
	return nil
}

type memEvents struct{ s *memoryStore }

func (m *memEvents) AppendEvent(ctx context.Context, event *models.ScoringEvent) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.appendErr != nil {
		return m.s.appendErr
	}
	m.s.events[event.CompanyID] = append(m.s.events[event.CompanyID], *event)
	return nil
}

func (m *memEvents) ListEvents(ctx context.Context, companyID uuid.UUID, limit int) ([]models.ScoringEvent, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	events := append([]models.ScoringEvent(nil), m.s.events[companyID]...)
	sort.Slice(events, func(i, j int) bool { return events[i].ScoredAt.After(events[j].ScoredAt) })
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *memEvents) CountEvents(ctx context.Context, companyID uuid.UUID) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.events[companyID]), nil
}

func (m *memEvents) LatestEventTime(ctx context.Context, companyID uuid.UUID) (*time.Time, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var latest *time.Time
	for _, e := range m.s.events[companyID] {
		if latest == nil || e.ScoredAt.After(*latest) {
			t := e.ScoredAt
			latest = &t
		}
	}
	return latest, nil
}

type memTx struct{ s *memoryStore }

func (m *memTx) WithTransaction(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	m.s.mu.Lock()
	companies := make(map[uuid.UUID]models.Company, len(m.s.companies))
	for k, v := range m.s.companies {
		companies[k] = v
	}
	events := make(map[uuid.UUID][]models.ScoringEvent, len(m.s.events))
	for k, v := range m.s.events {
		events[k] = append([]models.ScoringEvent(nil), v...)
	}
	m.s.mu.Unlock()

	if err := fn(m.s.repositories()); err != nil {
		m.s.mu.Lock()
		m.s.companies = companies
		m.s.events = events
		m.s.mu.Unlock()
		return err
	}
	return nil
}
