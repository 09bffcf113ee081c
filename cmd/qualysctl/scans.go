package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/Sternrassler/qualys-api-client/pkg/client"
	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/spf13/cobra"
)

func newScansCmd(a *app) *cobra.Command {
	var (
		f          importFlags
		scheduled  bool
		appliances bool
	)

	cmd := &cobra.Command{
		Use:   "scans",
		Short: "List launched or scheduled scans, or scanner appliances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(a, cmd, &f, func(cmd *cobra.Command, params url.Values, s *sink, workers int) (string, error) {
				list := a.api.ListScans
				switch {
				case scheduled:
					list = a.api.ListScheduledScans
				case appliances:
					list = a.api.ScannerApplianceQuery
				}
				if _, err := list(cmd.Context(), params, client.WithConsumer(s, workers)); err != nil {
					return "", err
				}
				return "single page", nil
			})
		},
	}

	f.register(cmd, false)
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "list scheduled scans")
	cmd.Flags().BoolVar(&appliances, "appliances", false, "list scanner appliances")
	cmd.MarkFlagsMutuallyExclusive("scheduled", "appliances")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var (
		f    importFlags
		id   int64
		file string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Fetch an asset data report by id, or list reports when no id is given",
		Example: `  qualysctl report
  qualysctl report --id 4567
  qualysctl report --id 4567 --file saved_report.xml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(a, cmd, &f, func(cmd *cobra.Command, params url.Values, s *sink, workers int) (string, error) {
				ctx := cmd.Context()
				if id == 0 && file == "" {
					if _, err := a.api.ListReports(ctx, params, client.WithConsumer(s, workers)); err != nil {
						return "", err
					}
					return "report list", nil
				}

				var (
					report *objects.Report
					err    error
				)
				stub := &objects.Report{ID: id}
				if file != "" {
					fh, openErr := os.Open(file)
					if openErr != nil {
						return "", fmt.Errorf("open report file: %w", openErr)
					}
					defer fh.Close()
					report, err = a.api.ReportFromFile(ctx, fh, stub)
				} else {
					report, err = a.api.FetchReport(ctx, id, stub)
				}
				if err != nil {
					return "", err
				}
				if report == nil {
					return "", errors.New("no ASSET_DATA_REPORT in response")
				}

				if err := s.Consume(ctx, report); err != nil {
					return "", err
				}
				if err := s.Finish(ctx); err != nil {
					return "", err
				}
				return fmt.Sprintf("report %d with %d hosts", report.ID, len(report.Hosts)), nil
			})
		},
	}

	f.register(cmd, false)
	cmd.Flags().Int64Var(&id, "id", 0, "report id")
	cmd.Flags().StringVar(&file, "file", "", "parse a saved asset data report instead of downloading it")
	return cmd
}
