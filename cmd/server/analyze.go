package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/logger"
)

func runAnalyze(cmd *cobra.Command, args []string) error {
	raw, err := cmd.Flags().GetString("categories")
	if err != nil {
		return err
	}
	compact, err := cmd.Flags().GetBool("compact")
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	mode := logMode
	if mode == "" {
		mode = "dev"
	}
	log, err := logger.New(mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	return analyzeTo(cmd.OutOrStdout(), in, raw, compact, log)
}

func analyzeTo(w io.Writer, in io.Reader, rawCategories string, compact bool, log *logger.Logger) error {
	categories, err := analysis.ParseCategories(rawCategories)
	if err != nil {
		return err
	}
	t, err := analysis.DecodeTranscript(in)
	if err != nil {
		return err
	}
	result, err := analysis.NewEngine(log).Analyze(t, categories...)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", t.ID, err)
	}

	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}
