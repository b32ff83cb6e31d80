package domain

// fieldParser accumulates field failures while parsing one record.
type fieldParser struct {
	problems []FieldError
}

func (p *fieldParser) number(field string, t Text) float64 {
	raw, ok := t.Value()
	if !ok {
		p.problems = append(p.problems, &MissingFieldError{Field: field})
		return 0
	}
	v, err := ParseNumber(raw)
	if err != nil {
		p.problems = append(p.problems, &InvalidNumberError{Field: field, Raw: raw})
		return 0
	}
	return v
}

func (p *fieldParser) finite(field string, v float64) float64 {
	if !IsFinite(v) {
		p.problems = append(p.problems, &InvalidNumberError{Field: field, Raw: FormatNumber(v)})
		return 0
	}
	return v
}

func (p *fieldParser) err(record EntityType) error {
	if len(p.problems) == 0 {
		return nil
	}
	return &ValidationError{Record: record, Problems: p.problems}
}

// NormalizeConstituent validates input and returns the numeric constituent.
// Volume comes from ctx and must be finite. On failure the returned record is
// the zero value and the error is a *ValidationError.
func NormalizeConstituent(input ConstituentText, ctx ConstituentContext) (Constituent, error) {
	var p fieldParser
	out := Constituent{
		MolecularWeight: p.number(FieldMolecularWeight, input.MolecularWeight),
		Concentration:   p.number(FieldConcentration, input.Concentration),
		Proportion:      p.number(FieldProportion, input.Proportion),
		Volume:          p.finite(FieldVolume, ctx.Volume),
	}
	if err := p.err(EntityConstituent); err != nil {
		return Constituent{}, err
	}
	return out, nil
}

// NormalizeLipid validates input and returns the numeric lipid. On failure the
// returned record is the zero value and the error is a *ValidationError.
func NormalizeLipid(input LipidText) (Lipid, error) {
	var p fieldParser
	out := Lipid{
		Concentration: p.number(FieldConcentration, input.Concentration),
		Volume:        p.number(FieldVolume, input.Volume),
	}
	if err := p.err(EntityLipid); err != nil {
		return Lipid{}, err
	}
	return out, nil
}
