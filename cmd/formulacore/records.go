package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"formulacore/pkg/domain"
)

var entityArgs = []string{string(domain.EntityConstituent) + "s", string(domain.EntityLipid) + "s"}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "list constituents|lipids",
		Short:     "Print stored records",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: entityArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch args[0] {
			case "constituents":
				recs, err := a.svc.ListConstituents(ctx)
				if err != nil {
					return err
				}
				return a.printJSON(recs)
			default:
				recs, err := a.svc.ListLipids(ctx)
				if err != nil {
					return err
				}
				return a.printJSON(recs)
			}
		},
	}
}

func entityOf(arg string) (domain.EntityType, error) {
	switch arg {
	case string(domain.EntityConstituent):
		return domain.EntityConstituent, nil
	case string(domain.EntityLipid):
		return domain.EntityLipid, nil
	}
	return "", fmt.Errorf("unknown record kind %q", arg)
}

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get constituent|lipid <id>",
		Short: "Print one stored record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := entityOf(args[0])
			if err != nil {
				return err
			}
			if kind == domain.EntityConstituent {
				rec, err := a.svc.GetConstituent(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				return a.printJSON(rec)
			}
			rec, err := a.svc.GetLipid(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return a.printJSON(rec)
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete constituent|lipid <id>",
		Short: "Remove a stored record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := entityOf(args[0])
			if err != nil {
				return err
			}
			if kind == domain.EntityConstituent {
				err = a.svc.DeleteConstituent(cmd.Context(), args[1])
			} else {
				err = a.svc.DeleteLipid(cmd.Context(), args[1])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "deleted %s %s\n", kind, args[1])
			return nil
		},
	}
}
