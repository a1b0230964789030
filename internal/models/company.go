package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Company is a scored entity. The scoring fields (MoatScore through
// LastScoredAt) are written only by the scoring subsystem.
type Company struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	Name           string              `json:"name" db:"name"`
	Sector         string              `json:"sector" db:"sector"`
	Country        string              `json:"country" db:"country"`
	Description    string              `json:"description" db:"description"`
	Website        string              `json:"website" db:"website"`
	RawWebsiteText string              `json:"-" db:"raw_website_text"`
	Revenue        decimal.NullDecimal `json:"revenue" db:"revenue"`
	EBITDAMargin   decimal.NullDecimal `json:"ebitda_margin" db:"ebitda_margin"`
	EmployeeCount  *int                `json:"employee_count" db:"employee_count"`

	MoatScore      *int            `json:"moat_score" db:"moat_score"`
	Tier           *Tier           `json:"tier" db:"tier"`
	MoatAttributes *MoatAttributes `json:"moat_attributes" db:"moat_attributes"`
	ScoringStatus  ScoringStatus   `json:"scoring_status" db:"scoring_status"`
	LastScoredAt   *time.Time      `json:"last_scored_at" db:"last_scored_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CheckScoringState verifies that a score is present exactly when the status
// says the company was scored.
func (c *Company) CheckScoringState() error {
	if !c.ScoringStatus.Valid() {
		return fmt.Errorf("company %s has unknown scoring status %q", c.ID, c.ScoringStatus)
	}
	scored := c.ScoringStatus == StatusScored
	if scored != (c.MoatScore != nil) {
		return fmt.Errorf("company %s: moat_score presence does not match status %q", c.ID, c.ScoringStatus)
	}
	if scored && c.Tier == nil {
		return fmt.Errorf("company %s: scored without a tier", c.ID)
	}
	if !scored && c.Tier != nil {
		return fmt.Errorf("company %s: tier set while status is %q", c.ID, c.ScoringStatus)
	}
	return nil
}

// Certification is a regulatory or quality accreditation held by a company.
type Certification struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CompanyID uuid.UUID `json:"company_id" db:"company_id"`
	CertType  string    `json:"cert_type" db:"cert_type"`
	Scope     *string   `json:"scope,omitempty" db:"scope"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ScoringStatus is the company-level scoring state.
type ScoringStatus string

const (
	StatusNotScored        ScoringStatus = "not_scored"
	StatusInsufficientData ScoringStatus = "insufficient_data"
	StatusScored           ScoringStatus = "scored"
)

// ParseScoringStatus rejects anything outside the closed set.
func ParseScoringStatus(s string) (ScoringStatus, error) {
	switch ScoringStatus(s) {
	case StatusNotScored, StatusInsufficientData, StatusScored:
		return ScoringStatus(s), nil
	default:
		return "", fmt.Errorf("unknown scoring status %q", s)
	}
}

func (s ScoringStatus) Valid() bool {
	_, err := ParseScoringStatus(string(s))
	return err == nil
}

func (s ScoringStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown scoring status %q", string(s))
	}
	return string(s), nil
}

func (s *ScoringStatus) Scan(value interface{}) error {
	str, err := scanString(value, "ScoringStatus")
	if err != nil {
		return err
	}
	parsed, err := ParseScoringStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Tier is the investment priority bucket derived from the moat score.
type Tier string

const (
	Tier1A       Tier = "1A"
	Tier1B       Tier = "1B"
	Tier2        Tier = "2"
	TierWaitlist Tier = "waitlist"
)

func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case Tier1A, Tier1B, Tier2, TierWaitlist:
		return Tier(s), nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

func (t Tier) Valid() bool {
	_, err := ParseTier(string(t))
	return err == nil
}

func (t Tier) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown tier %q", string(t))
	}
	return string(t), nil
}

func (t *Tier) Scan(value interface{}) error {
	str, err := scanString(value, "Tier")
	if err != nil {
		return err
	}
	parsed, err := ParseTier(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer for MoatAttributes
func (a MoatAttributes) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner for MoatAttributes
func (a *MoatAttributes) Scan(value interface{}) error {
	if value == nil {
		*a = MoatAttributes{}
		return nil
	}
	return scanJSON(value, a, "MoatAttributes")
}

func scanString(value interface{}, target string) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("cannot scan %T into %s", value, target)
	}
}

func scanJSON(value interface{}, dest interface{}, target string) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into %s", value, target)
	}
	return json.Unmarshal(data, dest)
}
