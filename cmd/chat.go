package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"geotech-rag/internal/tui"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the knowledge base in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			// log lines would tear the alternate screen
			log.Logger = zerolog.Nop()

			port := tui.SessionPort{Pipeline: a.pipeline, Session: a.newSession("terminal")}
			_, err = tea.NewProgram(tui.New(cmd.Context(), port), tea.WithAltScreen()).Run()
			return err
		},
	}
}
