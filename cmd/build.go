package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"geotech-rag/internal/helper"
	"geotech-rag/internal/rag"
)

func newBuildCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the vector index, or load the existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			s := a.newSession("cli")
			var state rag.State
			if force {
				state, err = a.pipeline.Rebuild(cmd.Context(), s)
			} else {
				state, err = a.pipeline.EnsureReady(cmd.Context(), s)
			}
			if err != nil {
				return err
			}
			if state != rag.StateReady {
				return fmt.Errorf("index not available: %s", state)
			}
			helper.PrettyPrint(s.IndexMetadata())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "discard the existing index and rebuild from the PDFs")
	return cmd
}
