package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"formulacore/internal/batch"
)

func newIngestCommand(a *app) *cobra.Command {
	var (
		format  string
		publish bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Normalize and store every entry of a JSON or YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f := batch.FormatForPath(args[0])
			if cmd.Flags().Changed("format") {
				var err error
				if f, err = batch.ParseFormat(format); err != nil {
					return err
				}
			}
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			doc, err := batch.Decode(file, f)
			_ = file.Close()
			if err != nil {
				return err
			}
			opts := []batch.Option{batch.WithConcurrency(a.cfg.Batch.Concurrency), batch.WithLogger(a.log)}
			if publish {
				store, err := a.blobStore(ctx)
				if err != nil {
					return err
				}
				opts = append(opts, batch.WithBlobStore(store))
			}
			runner := batch.NewRunner(a.svc, opts...)
			report, err := runner.Run(ctx, doc)
			if err != nil {
				return err
			}
			if publish {
				if _, err := runner.Publish(ctx, report); err != nil {
					return err
				}
			}
			return a.printJSON(report)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "document format (json, yaml); guessed from the extension by default")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish the report to the configured blob store")
	return cmd
}

func newReportsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect published ingestion reports",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List published report IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.blobStore(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := batch.ListReports(cmd.Context(), store)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(a.stdout, id)
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "show <id>",
		Short: "Print a published report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.blobStore(cmd.Context())
			if err != nil {
				return err
			}
			report, err := batch.FetchReport(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(report)
		},
	})
	return cmd
}
