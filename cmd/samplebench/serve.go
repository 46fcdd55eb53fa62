package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/samplebench/api"
	"github.com/stellarlinkco/samplebench/internal/store"
)

func newServeCmd(st *cliState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run results and dataset listings over HTTP",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(st, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

func runServe(st *cliState, addr string) error {
	if st == nil || st.cfg == nil {
		return errors.New("serve: missing config (internal error)")
	}

	sqlStore, err := store.NewSQLiteStore(st.cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer sqlStore.Close()

	srv, err := api.NewServer(st.cfg, sqlStore)
	if err != nil {
		return err
	}
	return srv.Run(addr)
}
