package breach

import (
	"fmt"
	"strings"
	"time"
)

// Category identifies which portal report a breach came from.
type Category string

// Portal report categories.
const (
	CategoryArchive Category = "archive"
	CategoryCurrent Category = "current"
)

// Subdirectory names used when relocating downloaded reports.
const (
	archiveDir = "archive"
	currentDir = "currently_under_investigation"
)

// Categories returns every portal category in collection order.
func Categories() []Category {
	return []Category{CategoryArchive, CategoryCurrent}
}

// ParseCategory maps user input to a Category.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "archive", "archived":
		return CategoryArchive, nil
	case "current", "open", "currently_under_investigation":
		return CategoryCurrent, nil
	default:
		return "", fmt.Errorf("unknown category %q", raw)
	}
}

// ParseCategories expands a comma separated list; "all" or an empty string
// selects every category.
func ParseCategories(raw string) ([]Category, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return Categories(), nil
	}
	var out []Category
	seen := map[Category]bool{}
	for _, part := range strings.Split(raw, ",") {
		c, err := ParseCategory(part)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// Archived reports whether rows of this category carry archive = true.
func (c Category) Archived() bool {
	return c == CategoryArchive
}

// Dir is the subdirectory a finished report of this category is moved into.
func (c Category) Dir() string {
	if c == CategoryArchive {
		return archiveDir
	}
	return currentDir
}

func (c Category) String() string {
	return string(c)
}

// Breach is a single incident from the portal report.
type Breach struct {
	ID                            int64     `json:"id"`
	NameOfCoveredEntity           string    `json:"name_of_covered_entity"`
	State                         string    `json:"state"`
	CoveredEntityType             string    `json:"covered_entity_type"`
	IndividualsAffected           int       `json:"individuals_affected"`
	BreachSubmissionDate          time.Time `json:"breach_submission_date"`
	TypeOfBreach                  string    `json:"type_of_breach"`
	LocationOfBreachedInformation string    `json:"location_of_breached_information"`
	BusinessAssociatePresent      bool      `json:"business_associate_present"`
	WebDescription                string    `json:"web_description"`
	Archive                       bool      `json:"archive"`
}

// DefaultIndividualsAffected is used when the report leaves the count blank.
// The portal only lists breaches affecting 500 or more individuals.
const DefaultIndividualsAffected = 500

// StateSummary aggregates breaches per state.
type StateSummary struct {
	State               string `json:"state"`
	Breaches            int64  `json:"breaches"`
	IndividualsAffected int64  `json:"individuals_affected"`
}

// CollectionResult describes one category's download and load.
type CollectionResult struct {
	RunID      string    `json:"run_id"`
	Category   Category  `json:"category"`
	Outcome    string    `json:"outcome"`
	ReportPath string    `json:"report_path,omitempty"`
	BlobURI    string    `json:"blob_uri,omitempty"`
	Digest     string    `json:"digest,omitempty"`
	Rows       int64     `json:"rows"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}
