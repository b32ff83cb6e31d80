// Package domain defines the constituent and lipid records handled by
// formulacore, the text-to-numeric normalizers that validate them, and the
// persistence contracts used by storage backends.
package domain

import (
	"strconv"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in errors and persistence buckets.
const (
	// EntityConstituent identifies a stored constituent record.
	EntityConstituent EntityType = "constituent"
	// EntityLipid identifies a stored lipid record.
	EntityLipid EntityType = "lipid"
)

// Wire names of the record fields. Errors always name fields this way.
const (
	FieldMolecularWeight = "molecularWeight"
	FieldConcentration   = "concentration"
	FieldProportion      = "proportion"
	FieldVolume          = "volume"
)

// ConstituentText is the raw, possibly partial input form of a constituent.
type ConstituentText struct {
	MolecularWeight Text `json:"molecularWeight" yaml:"molecularWeight"`
	Concentration   Text `json:"concentration" yaml:"concentration"`
	Proportion      Text `json:"proportion" yaml:"proportion"`
}

// Constituent is a fully validated constituent. Every value is finite.
type Constituent struct {
	MolecularWeight float64 `json:"molecularWeight"`
	Concentration   float64 `json:"concentration"`
	Proportion      float64 `json:"proportion"`
	Volume          float64 `json:"volume"`
}

// Text renders the constituent back into its text form. Volume has no text
// counterpart and is dropped; pass it again through ConstituentContext.
func (c Constituent) Text() ConstituentText {
	return ConstituentText{
		MolecularWeight: Present(FormatNumber(c.MolecularWeight)),
		Concentration:   Present(FormatNumber(c.Concentration)),
		Proportion:      Present(FormatNumber(c.Proportion)),
	}
}

// Context returns the derivation context that reproduces the constituent's volume.
func (c Constituent) Context() ConstituentContext {
	return ConstituentContext{Volume: c.Volume}
}

// ConstituentContext carries externally supplied values needed to build a
// Constituent. Volume is copied into Constituent.Volume as-is.
type ConstituentContext struct {
	Volume float64 `json:"volume"`
}

// LipidText is the raw, possibly partial input form of a lipid.
type LipidText struct {
	Concentration Text `json:"concentration" yaml:"concentration"`
	Volume        Text `json:"volume" yaml:"volume"`
}

// Lipid is a fully validated lipid. Every value is finite.
type Lipid struct {
	Concentration float64 `json:"concentration"`
	Volume        float64 `json:"volume"`
}

// Text renders the lipid back into its text form.
func (l Lipid) Text() LipidText {
	return LipidText{
		Concentration: Present(FormatNumber(l.Concentration)),
		Volume:        Present(FormatNumber(l.Volume)),
	}
}

// Base contains common fields for all stored records.
type Base struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConstituentRecord is an accepted constituent kept by a PersistentStore.
type ConstituentRecord struct {
	Base
	Constituent
}

// LipidRecord is an accepted lipid kept by a PersistentStore.
type LipidRecord struct {
	Base
	Lipid
}

// FormatNumber renders v in the shortest form that parses back to the same float64.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
