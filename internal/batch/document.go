// Package batch ingests documents of constituent and lipid entries, records
// the valid ones and publishes a report of the outcome.
package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"formulacore/pkg/domain"
)

// Format names a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported document format %q", s)
	}
}

// FormatForPath guesses the format from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ConstituentEntry is one constituent line of a document. Volume supplies the
// derivation context and is validated like the text fields.
type ConstituentEntry struct {
	Label           string      `json:"label" yaml:"label"`
	MolecularWeight domain.Text `json:"molecularWeight" yaml:"molecularWeight"`
	Concentration   domain.Text `json:"concentration" yaml:"concentration"`
	Proportion      domain.Text `json:"proportion" yaml:"proportion"`
	Volume          domain.Text `json:"volume" yaml:"volume"`
}

// Text returns the entry's constituent fields.
func (e ConstituentEntry) Text() domain.ConstituentText {
	return domain.ConstituentText{
		MolecularWeight: e.MolecularWeight,
		Concentration:   e.Concentration,
		Proportion:      e.Proportion,
	}
}

// LipidEntry is one lipid line of a document.
type LipidEntry struct {
	Label         string      `json:"label" yaml:"label"`
	Concentration domain.Text `json:"concentration" yaml:"concentration"`
	Volume        domain.Text `json:"volume" yaml:"volume"`
}

// Text returns the entry's lipid fields.
func (e LipidEntry) Text() domain.LipidText {
	return domain.LipidText{Concentration: e.Concentration, Volume: e.Volume}
}

// Document is the ingestion input.
type Document struct {
	Constituents []ConstituentEntry `json:"constituents" yaml:"constituents"`
	Lipids       []LipidEntry       `json:"lipids" yaml:"lipids"`
}

// Len returns the number of entries.
func (d Document) Len() int { return len(d.Constituents) + len(d.Lipids) }

// Decode reads a document. Unknown keys are rejected.
func Decode(r io.Reader, format Format) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode json document: %w", err)
		}
	case FormatYAML:
		if err := yaml.UnmarshalWithOptions(raw, &doc, yaml.DisallowUnknownField()); err != nil {
			return Document{}, fmt.Errorf("decode yaml document: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("unsupported document format %q", format)
	}
	return doc, nil
}
