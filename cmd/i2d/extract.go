package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/spf13/cobra"

	"github.com/hericlibong/Infograph2Data/constants"
	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/extract"
	"github.com/hericlibong/Infograph2Data/internal/pdfpage"
	"github.com/hericlibong/Infograph2Data/internal/repository"
)

var (
	extractPage     int
	extractStrategy string
	extractBBox     string
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf]",
	Short: "Extract a table from a PDF page",
	Long: `Extract runs one extraction against a local PDF and prints the resulting
dataset as JSON. The job and dataset are persisted to the configured storage
so the server and the export command can see them.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().IntVarP(&extractPage, "page", "p", 1, "1-indexed page number")
	extractCmd.Flags().StringVarP(&extractStrategy, "strategy", "s", "auto", "extraction strategy (auto, pdf_text, ocr, vision_llm)")
	extractCmd.Flags().StringVar(&extractBBox, "bbox", "", "clip region as x1,y1,x2,y2 in page points")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := common.LoadConfig()

	strategy, ok := constants.ParseStrategy(extractStrategy)
	if !ok {
		return fmt.Errorf("unknown strategy: %s", extractStrategy)
	}
	bbox, err := parseBBox(extractBBox)
	if err != nil {
		return err
	}

	db, err := repository.Open(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	pool, err := webassembly.Init(webassembly.Config{MinIdle: 1, MaxIdle: 1, MaxTotal: 1})
	if err != nil {
		return fmt.Errorf("start pdfium runtime: %w", err)
	}
	defer pool.Close()

	jobs := repository.NewJobRepository(db, logger)
	datasets := repository.NewDatasetRepository(db, logger)
	provider := pdfpage.NewProvider(pool, logger)
	svc := extract.NewService(jobs, datasets, provider, logger)

	job, ds, err := svc.Run(cmd.Context(), extract.Request{
		FilePath: args[0],
		Page:     extractPage,
		BBox:     bbox,
		Strategy: strategy,
	})
	if err != nil {
		return err
	}
	if ds == nil {
		fmt.Fprintf(os.Stderr, "no dataset produced: job %s finished %s", job.ID, job.Status)
		if job.Error != "" {
			fmt.Fprintf(os.Stderr, " (%s)", job.Error)
		}
		fmt.Fprintln(os.Stderr)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ds)
}

func parseBBox(raw string) ([]float64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be x1,y1,x2,y2")
	}
	bbox := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox value %q is not a number", p)
		}
		bbox[i] = v
	}
	return bbox, nil
}
