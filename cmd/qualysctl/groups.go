package main

import (
	"net/url"

	"github.com/Sternrassler/qualys-api-client/pkg/client"
	"github.com/spf13/cobra"
)

func newGroupsCmd(a *app) *cobra.Command {
	var (
		f  importFlags
		v1 bool
	)

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Import asset groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(a, cmd, &f, func(cmd *cobra.Command, params url.Values, s *sink, workers int) (string, error) {
				// The v1 API is not paginated
				if v1 {
					if _, err := a.api.AssetGroupListV1(cmd.Context(), params, client.WithConsumer(s, workers)); err != nil {
						return "", err
					}
					return "single page", nil
				}

				res, err := a.api.IterateAssetGroups(cmd.Context(), params, f.pagination(a), client.WithConsumer(s, workers))
				if err != nil {
					return "", err
				}
				return res.String(), nil
			})
		},
	}

	f.register(cmd, true)
	cmd.Flags().BoolVar(&v1, "v1", false, "use the legacy asset_group_list.php API")
	return cmd
}
