package main

import (
	"net/url"

	"github.com/Sternrassler/qualys-api-client/pkg/client"
	"github.com/spf13/cobra"
)

func newHostsCmd(a *app) *cobra.Command {
	var (
		f          importFlags
		detections bool
	)

	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Import the host list, or host detections with --detections",
		Example: `  qualysctl hosts --max 5000
  qualysctl hosts --detections --param status=New,Active --db qualys.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(a, cmd, &f, func(cmd *cobra.Command, params url.Values, s *sink, workers int) (string, error) {
				iterate := a.api.IterateHostList
				if detections {
					iterate = a.api.IterateHostDetections
				}
				res, err := iterate(cmd.Context(), params, f.pagination(a), client.WithConsumer(s, workers))
				if err != nil {
					return "", err
				}
				return res.String(), nil
			})
		},
	}

	f.register(cmd, true)
	cmd.Flags().BoolVar(&detections, "detections", false, "import host detections instead of the host list")
	return cmd
}
