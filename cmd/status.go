package main

import (
	"errors"

	"github.com/spf13/cobra"

	"geotech-rag/internal/chromemdb"
	"geotech-rag/internal/helper"
	"geotech-rag/internal/models"
	"geotech-rag/internal/parser"
)

type statusReport struct {
	PDFDir     string                `json:"pdf_dir"`
	PDFFiles   []string              `json:"pdf_files"`
	KeyPresent bool                  `json:"key_present"`
	Backend    string                `json:"backend"`
	Index      *models.IndexMetadata `json:"index"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the PDF folder and the persisted index without building",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			names, err := parser.ListPDFs(a.cfg.PDFDir)
			if err != nil {
				return err
			}
			report := statusReport{
				PDFDir:     a.cfg.PDFDir,
				PDFFiles:   names,
				KeyPresent: a.pipeline.KeyAvailable(a.newSession("cli")),
				Backend:    a.cfg.Index.Backend,
			}
			meta, err := a.pipeline.Builder().Metadata(cmd.Context())
			if err != nil && !errors.Is(err, chromemdb.ErrIndexNotFound) {
				return err
			}
			report.Index = meta
			helper.PrettyPrint(report)
			return nil
		},
	}
}
