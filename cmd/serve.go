package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"geotech-rag/internal/job"
	"geotech-rag/internal/schedule"
	"geotech-rag/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if spec := a.cfg.Index.StaleCheck; spec != "" {
				scheduler := schedule.NewCronScheduler()
				if err := scheduler.AddJob(job.NewStaleIndexJob(a.pipeline.Builder()), spec); err != nil {
					return err
				}
				scheduler.Start(ctx)
				defer scheduler.Stop()
			}

			if a.cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			return server.New(a.cfg, a.pipeline, a.newSession).Run(ctx)
		},
	}
}
