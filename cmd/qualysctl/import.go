package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/qualys-api-client/pkg/client"
	"github.com/Sternrassler/qualys-api-client/pkg/pagination"
	"github.com/spf13/cobra"
)

// importFlags are shared by the import commands.
type importFlags struct {
	max      int
	pageSize int
	workers  int
	db       string
	params   []string
}

func (f *importFlags) register(cmd *cobra.Command, paged bool) {
	if paged {
		cmd.Flags().IntVar(&f.max, "max", -1, "maximum records to request (0 = unlimited, default from config)")
		cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "records per page (default from config)")
	}
	cmd.Flags().IntVar(&f.workers, "workers", -1, "concurrent consumer workers (default from config)")
	cmd.Flags().StringVar(&f.db, "db", "", "store results in this bbolt database instead of printing")
	cmd.Flags().StringSliceVar(&f.params, "param", nil, "extra API parameter as key=value (repeatable)")
}

// pagination layers the command line over the configured import settings.
func (f *importFlags) pagination(a *app) pagination.Config {
	cfg := a.cfg.PaginationConfig()
	if f.pageSize > 0 {
		cfg.PageSize = f.pageSize
	}
	if f.max >= 0 {
		cfg.MaxResults = f.max
	}
	return cfg
}

func (f *importFlags) values() (url.Values, error) {
	params := url.Values{}
	for _, kv := range f.params {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: --param %q is not key=value", client.ErrUsage, kv)
		}
		params.Add(k, v)
	}
	return params, nil
}

// runImport wires flags, config and sink around one import.
func runImport(a *app, cmd *cobra.Command, f *importFlags, iterate func(*cobra.Command, url.Values, *sink, int) (string, error)) error {
	defer a.Close()

	params, err := f.values()
	if err != nil {
		return err
	}

	dbPath := f.db
	if dbPath == "" {
		dbPath = a.cfg.DBPath
	}
	s, err := openSink(cmd.OutOrStdout(), dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	workers := a.cfg.Import.Workers
	if f.workers >= 0 {
		workers = f.workers
	}

	summary, err := iterate(cmd, params, s, workers)
	if err != nil {
		return err
	}

	a.logger.Info().
		Str("command", cmd.Name()).
		Int64("objects", s.Count()).
		Str("result", summary).
		Msg("Import finished")
	if cmd.Context().Err() != nil {
		return cmd.Context().Err()
	}
	return nil
}
