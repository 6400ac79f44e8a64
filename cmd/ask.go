package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var showSources bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			answer, err := a.pipeline.Ask(cmd.Context(), a.newSession("cli"), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", answer.Text)
			if showSources && len(answer.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, s := range answer.Sources {
					fmt.Fprintf(out, "  %s p.%d  score=%.3f\n", s.Source, s.Page, s.Score)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", true, "print the passages the answer is based on")
	return cmd
}
