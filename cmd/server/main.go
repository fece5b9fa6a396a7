package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logMode    string

	Root = &cobra.Command{
		Use:           "teamsync",
		Short:         "Meeting transcript analysis service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	Serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, transcription jobs and progress websocket",
		Args:  cobra.ExactArgs(0),
		RunE:  runServe,
	}

	Analyze = &cobra.Command{
		Use:   "analyze <transcript.json|->",
		Short: "Analyse a transcript file and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
)

func init() {
	Root.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	Root.PersistentFlags().StringVar(&logMode, "log-mode", "", "Log mode override: dev or prod")

	Analyze.Flags().String("categories", "", "Comma-separated categories: keyTopics,speakerMetrics,sentiment,clarity")
	Analyze.Flags().Bool("compact", false, "Print single-line JSON")

	Root.AddCommand(Serve, Analyze)
}

func main() {
	if err := Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
