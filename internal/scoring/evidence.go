package scoring

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// Evidence is the normalized input for one scoring pass.
type Evidence struct {
	CompanyID       uuid.UUID
	Name            string
	Sector          string
	Country         string
	Description     string
	WebsiteText     string
	Certifications  []string
	Revenue         decimal.NullDecimal
	EBITDAMargin    decimal.NullDecimal
	EmployeeCount   *int
	GraphCentrality *float64
}

// Centrality returns the graph signal, treating an absent signal as zero.
func (ev Evidence) Centrality() float64 {
	if ev.GraphCentrality == nil {
		return 0
	}
	return *ev.GraphCentrality
}

// Text is the lower-cased free text the keyword rules search.
func (ev Evidence) Text() string {
	return strings.ToLower(ev.Description + "\n" + ev.WebsiteText)
}

// Digest is a stable fingerprint of everything that can influence a score.
func (ev Evidence) Digest() string {
	certs := append([]string(nil), ev.Certifications...)
	sort.Strings(certs)

	var b strings.Builder
	fmt.Fprintf(&b, "name=%s\nsector=%s\ncountry=%s\n", ev.Name, ev.Sector, ev.Country)
	fmt.Fprintf(&b, "description=%s\nwebsite=%s\n", ev.Description, ev.WebsiteText)
	fmt.Fprintf(&b, "certs=%s\n", strings.Join(certs, ","))
	if ev.Revenue.Valid {
		fmt.Fprintf(&b, "revenue=%s\n", ev.Revenue.Decimal.String())
	}
	if ev.EBITDAMargin.Valid {
		fmt.Fprintf(&b, "ebitda_margin=%s\n", ev.EBITDAMargin.Decimal.String())
	}
	if ev.EmployeeCount != nil {
		fmt.Fprintf(&b, "employees=%d\n", *ev.EmployeeCount)
	}
	fmt.Fprintf(&b, "centrality=%s\n", strconv.FormatFloat(ev.Centrality(), 'f', -1, 64))

	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// GateDecision is the result of the insufficient-data check.
type GateDecision struct {
	Proceed bool
	Reason  string
}

// industryCodePattern matches descriptions that are nothing more than an
// industry classification code, e.g. "62020", "SIC 3812" or
// "NAICS 336413 - Aircraft parts manufacturing". A trailing label is only
// accepted after a SIC/NAICS/NACE prefix or a dotted NACE code, so prose that
// opens with a number ("1998 - Founded in ...") is not mistaken for a code.
var industryCodePattern = regexp.MustCompile(
	`(?i)^(?:` +
		// labelled: "SIC code: 62020", "NAICS 336413 - Aircraft parts"
		`(?:(?:uk\s+)?sic|naics|nace)(?:\s+codes?)?\s*[:#]?\s*` +
		`\d{2,6}(?:\.\d{1,2})?(?:\s*[,;/]\s*\d{2,6}(?:\.\d{1,2})?)*` + codeLabel +
		// dotted NACE: "62.02 - Computer consultancy activities"
		`|\d{2}\.\d{1,2}` + codeLabel +
		// bare codes with nothing after them: "62020", "62020, 62090"
		`|\d{4,6}(?:\s*[,;/]\s*\d{4,6})*` +
		`)\.?$`)

const codeLabel = `(?:\s*[-–:]\s*[^.!?\d]{0,120})?`

// IsIndustryCodeOnly reports whether desc carries no information beyond a
// classification code.
func IsIndustryCodeOnly(desc string) bool {
	return industryCodePattern.MatchString(strings.TrimSpace(desc))
}

// CheckEvidence decides whether there is enough free text to score. It looks
// only at text: certifications and financials alone never unlock scoring.
func CheckEvidence(ev Evidence) GateDecision {
	if strings.TrimSpace(ev.WebsiteText) != "" {
		return GateDecision{Proceed: true}
	}
	desc := strings.TrimSpace(ev.Description)
	switch {
	case desc == "":
		return GateDecision{Reason: "no website text and no description"}
	case IsIndustryCodeOnly(desc):
		return GateDecision{Reason: "no website text and description is only an industry code"}
	default:
		return GateDecision{Proceed: true}
	}
}
