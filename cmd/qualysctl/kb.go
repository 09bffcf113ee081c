package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/Sternrassler/qualys-api-client/pkg/client"
	"github.com/spf13/cobra"
)

func newKBCmd(a *app) *cobra.Command {
	var (
		f    importFlags
		ids  string
		file string
	)

	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Import knowledge base vulnerabilities from the API or a saved XML file",
		Example: `  qualysctl kb --ids 38170,105943
  qualysctl kb --file knowledgebase.xml --db qualys.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(a, cmd, &f, func(cmd *cobra.Command, params url.Values, s *sink, workers int) (string, error) {
				opt := client.WithConsumer(s, workers)

				if file != "" {
					fh, err := os.Open(file)
					if err != nil {
						return "", fmt.Errorf("open knowledge base file: %w", err)
					}
					defer fh.Close()
					if _, err := a.api.KnowledgeBaseFromFile(cmd.Context(), fh, opt); err != nil {
						return "", err
					}
					return "file " + file, nil
				}

				if ids != "" {
					params.Set("ids", ids)
				}
				if _, err := a.api.KnowledgeBaseQuery(cmd.Context(), params, opt); err != nil {
					return "", err
				}
				return "api", nil
			})
		},
	}

	f.register(cmd, false)
	cmd.Flags().StringVar(&ids, "ids", "", "comma separated QIDs to fetch")
	cmd.Flags().StringVar(&file, "file", "", "parse a saved knowledge base XML file instead of calling the API")
	cmd.MarkFlagsMutuallyExclusive("ids", "file")
	return cmd
}
