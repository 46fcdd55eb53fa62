package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/samplebench/internal/dataset"
	"github.com/stellarlinkco/samplebench/internal/store"
)

func newDatasetsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List available datasets",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasets(cmd, st)
		},
	}
}

func runDatasets(cmd *cobra.Command, st *cliState) error {
	if st == nil || st.cfg == nil {
		return errors.New("datasets: missing config (internal error)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sqlStore, err := store.NewSQLiteStore(st.cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer sqlStore.Close()

	stored, err := sqlStore.ListDatasets(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%-24s %8s %s\n", "DATASET", "SAMPLES", "SOURCE")
	_, _ = fmt.Fprintf(out, "%-24s %8d %s\n", dataset.Demo().Name(), dataset.Demo().Len(), "builtin")

	names := make([]string, 0, len(stored))
	for name := range stored {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(out, "%-24s %8d %s\n", name, stored[name], "store")
	}
	return nil
}
