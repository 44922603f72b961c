package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hericlibong/Infograph2Data/internal/entity"
	"github.com/hericlibong/Infograph2Data/internal/tabular"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse raw text into a table",
	Long: `Parse reads text from a file (or stdin when no file is given) and prints
the inferred table as JSON. The parser tries tab, pipe, aligned-column and
key-value layouts in that order and falls back to one row per line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	var (
		text []byte
		err  error
	)
	if len(args) == 1 {
		text, err = os.ReadFile(args[0])
	} else {
		text, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	columns, rows := tabular.ParseTable(string(text))

	out := struct {
		Columns []string     `json:"columns"`
		Rows    []entity.Row `json:"rows"`
	}{Columns: columns, Rows: rows}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
