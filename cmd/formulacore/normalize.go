package main

import (
	"github.com/spf13/cobra"

	"formulacore/internal/batch"
	"formulacore/pkg/domain"
)

// textFlag returns the flag value as present text only when the user set it.
func textFlag(cmd *cobra.Command, name, value string) domain.Text {
	if cmd.Flags().Changed(name) {
		return domain.Present(value)
	}
	return domain.Absent()
}

type rejection struct {
	Record   domain.EntityType `json:"record"`
	Label    string            `json:"label,omitempty"`
	Problems []batch.Problem   `json:"problems"`
}

// report prints validation problems and maps them to errReported; other errors pass through.
// override replaces the problem reported for its field.
func (a *app) report(record domain.EntityType, label string, err error, override *batch.Problem) error {
	problems := batch.ProblemsOf(err)
	if problems == nil {
		return err
	}
	problems = batch.OverrideProblem(problems, override)
	if perr := a.printJSON(rejection{Record: record, Label: label, Problems: problems}); perr != nil {
		return perr
	}
	return errReported
}

type saveFlags struct {
	save  bool
	label string
}

func (s *saveFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&s.save, "save", false, "store the normalized record")
	cmd.Flags().StringVar(&s.label, "label", "", "label for the stored record")
}

func newNormalizeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Convert text measurements into numeric records",
	}
	cmd.AddCommand(newNormalizeConstituentCommand(a), newNormalizeLipidCommand(a))
	return cmd
}

func newNormalizeConstituentCommand(a *app) *cobra.Command {
	var (
		molecularWeight, concentration, proportion, volume string
		save                                               saveFlags
	)
	cmd := &cobra.Command{
		Use:   "constituent",
		Short: "Normalize a constituent; --volume supplies its derivation context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := domain.ConstituentText{
				MolecularWeight: textFlag(cmd, "molecular-weight", molecularWeight),
				Concentration:   textFlag(cmd, "concentration", concentration),
				Proportion:      textFlag(cmd, "proportion", proportion),
			}
			cctx, volumeProblem := batch.ParseVolume(domain.Present(volume))
			if save.save {
				rec, err := a.svc.RecordConstituent(cmd.Context(), save.label, input, cctx)
				if err != nil {
					return a.report(domain.EntityConstituent, save.label, err, volumeProblem)
				}
				return a.printJSON(rec)
			}
			c, err := a.svc.NormalizeConstituent(cmd.Context(), input, cctx)
			if err != nil {
				return a.report(domain.EntityConstituent, "", err, volumeProblem)
			}
			return a.printJSON(c)
		},
	}
	cmd.Flags().StringVar(&molecularWeight, "molecular-weight", "", "molecular weight text")
	cmd.Flags().StringVar(&concentration, "concentration", "", "concentration text")
	cmd.Flags().StringVar(&proportion, "proportion", "", "proportion text")
	cmd.Flags().StringVar(&volume, "volume", "", "volume the constituent is derived in")
	_ = cmd.MarkFlagRequired("volume")
	save.register(cmd)
	return cmd
}

func newNormalizeLipidCommand(a *app) *cobra.Command {
	var (
		concentration, volume string
		save                  saveFlags
	)
	cmd := &cobra.Command{
		Use:   "lipid",
		Short: "Normalize a lipid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := domain.LipidText{
				Concentration: textFlag(cmd, "concentration", concentration),
				Volume:        textFlag(cmd, "volume", volume),
			}
			if save.save {
				rec, err := a.svc.RecordLipid(cmd.Context(), save.label, input)
				if err != nil {
					return a.report(domain.EntityLipid, save.label, err, nil)
				}
				return a.printJSON(rec)
			}
			l, err := a.svc.NormalizeLipid(cmd.Context(), input)
			if err != nil {
				return a.report(domain.EntityLipid, "", err, nil)
			}
			return a.printJSON(l)
		},
	}
	cmd.Flags().StringVar(&concentration, "concentration", "", "concentration text")
	cmd.Flags().StringVar(&volume, "volume", "", "volume text")
	save.register(cmd)
	return cmd
}
