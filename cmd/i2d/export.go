package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/export"
	"github.com/hericlibong/Infograph2Data/internal/repository"
)

var (
	exportFormats string
	exportFilter  string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export [dataset-id]",
	Short: "Export a stored dataset as a ZIP package",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormats, "formats", "f", "csv,json", "comma-separated formats (csv, json, xlsx)")
	exportCmd.Flags().StringVar(&exportFilter, "source-filter", "all", "row filter (all, annotated, estimated)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default <dataset-id>.zip)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := common.LoadConfig()
	datasetID := args[0]

	db, err := repository.Open(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	files, err := repository.NewFileStore(cfg.Storage.Dir, logger)
	if err != nil {
		return err
	}

	datasets := repository.NewDatasetRepository(db, logger)
	svc := export.NewService(datasets, files, logger)

	var formats []string
	for _, f := range strings.Split(exportFormats, ",") {
		if f = strings.TrimSpace(f); f != "" {
			formats = append(formats, f)
		}
	}

	zipBytes, err := svc.BuildZIP(cmd.Context(), export.Request{
		DatasetID:    datasetID,
		Formats:      formats,
		SourceFilter: exportFilter,
	})
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		out = datasetID + ".zip"
	}
	if err := os.WriteFile(out, zipBytes, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Println(out)
	return nil
}
