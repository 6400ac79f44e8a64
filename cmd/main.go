package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"geotech-rag/internal/chromemdb"
	"geotech-rag/internal/config"
	"geotech-rag/internal/db"
	"geotech-rag/internal/helper"
	"geotech-rag/internal/rag"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configPath string
	apiKey     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "geotech-rag",
		Short:         "Chat with a folder of geotechnical PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key, overrides the environment")

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newAskCmd(),
		newBuildCmd(),
		newStatusCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

type app struct {
	cfg      *config.Config
	pipeline *rag.Pipeline
	close    func() error
}

// newApp loads the config, sets up logging and wires the pipeline to the
// configured snapshot store.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	helper.InitLogger(cfg.Log)
	log.Debug().Interface("config", cfg.Redacted()).Msg("Loaded config")

	a := &app{cfg: cfg, close: func() error { return nil }}
	var store rag.SnapshotStore
	switch cfg.Index.Backend {
	case config.BackendPostgres:
		bunDB, err := db.ConnectDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.InitDB(ctx, bunDB); err != nil {
			_ = bunDB.Close()
			return nil, err
		}
		store = db.NewPGStore(bunDB)
		a.close = bunDB.Close
	default:
		store = chromemdb.NewDirStore(cfg.StorageDir, cfg.RAG.EncryptionKey)
	}

	builder, err := rag.NewBuilder(cfg, store)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.pipeline = rag.NewPipeline(cfg, builder)
	return a, nil
}

func (a *app) newSession(id string) *rag.Session {
	s := rag.NewSession(id)
	if apiKey != "" {
		s.SetKeyOverride(apiKey)
	}
	return s
}
