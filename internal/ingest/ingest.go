// Package ingest parses breach portal CSV reports into breach rows.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
)

// DateLayout is the portal's "Breach Submission Date" format.
const DateLayout = "01/02/2006"

// KnownNullEntity is an archived case merged into another one; the portal
// still lists it with no usable data.
const KnownNullEntity = "Valperaiso Fire Department"

// Normalized column names.
const (
	colName        = "name_of_covered_entity"
	colState       = "state"
	colEntityType  = "covered_entity_type"
	colAffected    = "individuals_affected"
	colSubmitted   = "breach_submission_date"
	colType        = "type_of_breach"
	colLocation    = "location_of_breached_information"
	colAssociate   = "business_associate_present"
	colDescription = "web_description"
)

var requiredColumns = []string{colName, colState, colSubmitted}

// ParseError points at the report line that could not be decoded.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d column %s: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NormalizeColumn maps a report header ("Name of Covered Entity") to its
// column name ("name_of_covered_entity").
func NormalizeColumn(header string) string {
	header = strings.TrimPrefix(header, "\ufeff")
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(header)), " ", "_")
}

// LoadFile parses the report at path.
func LoadFile(path string, category breach.Category) ([]breach.Breach, error) {
	// #nosec G304 -- path comes from the configured download directory.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file
	return Parse(f, category)
}

// Parse decodes a portal CSV report. Every row is tagged with the category's
// archive flag; archive reports drop the known-null merged case.
func Parse(r io.Reader, category breach.Category) ([]breach.Breach, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("report is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[NormalizeColumn(h)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("report missing column %q", col)
		}
	}

	var out []breach.Breach
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		if blankRecord(record) {
			continue
		}
		row, err := parseRecord(record, index, line)
		if err != nil {
			return nil, err
		}
		row.Archive = category.Archived()
		if row.Archive && row.NameOfCoveredEntity == KnownNullEntity {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func parseRecord(record []string, index map[string]int, line int) (breach.Breach, error) {
	field := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := breach.Breach{
		NameOfCoveredEntity:           field(colName),
		State:                         strings.ToUpper(field(colState)),
		CoveredEntityType:             field(colEntityType),
		TypeOfBreach:                  field(colType),
		LocationOfBreachedInformation: field(colLocation),
		WebDescription:                field(colDescription),
		IndividualsAffected:           breach.DefaultIndividualsAffected,
	}

	if raw := field(colAffected); raw != "" {
		n, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			return breach.Breach{}, &ParseError{Line: line, Column: colAffected, Err: err}
		}
		row.IndividualsAffected = n
	}

	submitted, err := time.Parse(DateLayout, field(colSubmitted))
	if err != nil {
		return breach.Breach{}, &ParseError{Line: line, Column: colSubmitted, Err: err}
	}
	row.BreachSubmissionDate = submitted

	associate, err := parseYesNo(field(colAssociate))
	if err != nil {
		return breach.Breach{}, &ParseError{Line: line, Column: colAssociate, Err: err}
	}
	row.BusinessAssociatePresent = associate
	return row, nil
}

func parseYesNo(raw string) (bool, error) {
	switch raw {
	case "Yes", "yes":
		return true, nil
	case "No", "no", "":
		return false, nil
	default:
		return false, fmt.Errorf("expected Yes or No, got %q", raw)
	}
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
