package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/samplebench/internal/dataset"
	"github.com/stellarlinkco/samplebench/internal/store"
)

type importOptions struct {
	path string
	name string
}

func newImportCmd(st *cliState) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a jsonl dataset into the sample store",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.path, "path", "", "path to a jsonl dataset file")
	cmd.Flags().StringVar(&opts.name, "name", "", "dataset name (defaults to file base name)")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}

func runImport(cmd *cobra.Command, st *cliState, opts *importOptions) error {
	if st == nil || st.cfg == nil {
		return errors.New("import: missing config (internal error)")
	}
	if opts == nil || strings.TrimSpace(opts.path) == "" {
		return errors.New("import: missing --path")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ds, err := dataset.LoadJSONL(ctx, opts.path, opts.name)
	if err != nil {
		return err
	}

	sqlStore, err := store.NewSQLiteStore(st.cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer sqlStore.Close()

	if err := sqlStore.ImportDataset(ctx, ds); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported dataset %q: %d samples\n", ds.Name(), ds.Len())
	return nil
}
