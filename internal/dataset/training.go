// Package dataset turns the symptom/prognosis training table into knowledge
// documents for the search index.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"triage-agent/internal/domain"
)

const labelColumn = "prognosis"

// ParseTrainingCSV reads a table whose columns are symptom flags (0/1) plus a
// "prognosis" label and returns one document per disease. When a disease
// appears on several rows the last row wins; output order follows first
// appearance.
func ParseTrainingCSV(r io.Reader) ([]domain.KnowledgeDocument, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset: empty input")
		}
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	label := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), labelColumn) {
			label = i
			break
		}
	}
	if label < 0 {
		return nil, fmt.Errorf("dataset: missing %q column", labelColumn)
	}

	var order []string
	byDisease := make(map[string]domain.KnowledgeDocument)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: line %d: %w", line, err)
		}
		if label >= len(rec) {
			return nil, fmt.Errorf("dataset: line %d: missing %s value", line, labelColumn)
		}
		disease := strings.TrimSpace(rec[label])
		if disease == "" {
			continue
		}

		var symptoms []string
		for i, v := range rec {
			if i == label || i >= len(header) {
				continue
			}
			name := strings.TrimSpace(header[i])
			if name == "" || strings.TrimSpace(v) != "1" {
				continue
			}
			symptoms = append(symptoms, name)
		}

		if _, seen := byDisease[disease]; !seen {
			order = append(order, disease)
		}
		byDisease[disease] = DiseaseDocument(disease, symptoms)
	}

	docs := make([]domain.KnowledgeDocument, 0, len(order))
	for _, d := range order {
		docs = append(docs, byDisease[d])
	}
	return docs, nil
}

// DiseaseDocument renders the reference text stored for one disease.
func DiseaseDocument(disease string, symptoms []string) domain.KnowledgeDocument {
	var b strings.Builder
	fmt.Fprintf(&b, "Information about: %s\n\n", disease)
	b.WriteString("Key Symptoms:\n")
	for _, s := range symptoms {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	fmt.Fprintf(&b, "\nDisease: %s\n", disease)
	b.WriteString("This is a medical condition that may require professional diagnosis and treatment.\n")
	b.WriteString("Please consult with a healthcare provider for proper medical advice.\n")
	return domain.KnowledgeDocument{Disease: disease, Content: b.String()}
}
