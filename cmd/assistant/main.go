package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aiopshq/assistant/config"
	"github.com/aiopshq/assistant/internal/agent"
	"github.com/aiopshq/assistant/internal/server"
	"github.com/aiopshq/assistant/internal/telemetry"
)

func main() {
	var root = &cobra.Command{
		Use:   "assistant",
		Short: "Plan, execute and verify multi-step data queries",
	}
	root.AddCommand(queryCMD(), serveCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCMD() *cobra.Command {
	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return server.Run(cfg)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return serve
}

func queryCMD() *cobra.Command {
	var cfgPath string
	var asJSON bool
	query := &cobra.Command{
		Use:   "query [text]",
		Short: "Run one query through the pipeline and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			tel := telemetry.New(cfg.Telemetry, nil)
			orch, err := agent.NewOrchestrator(cfg, tel)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.General.MaxProcessingTime)
			defer cancel()
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			text := ""
			for i, a := range args {
				if i > 0 {
					text += " "
				}
				text += a
			}

			result, err := orch.ProcessQuery(ctx, text)
			if err != nil {
				log.Fatalf("query failed: %v", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Println(result.Verification.FormattedOutput)
			if result.Verification.Summary != "" {
				fmt.Printf("\nSummary: %s\n", result.Verification.Summary)
			}
			for _, issue := range result.Verification.Issues {
				fmt.Printf("Issue: %s\n", issue)
			}
			fmt.Printf("\nConfidence: %.2f  (%.2fs)\n", result.Verification.ConfidenceScore, result.ProcessingTime.Seconds())
			return nil
		},
	}
	query.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	query.Flags().BoolVar(&asJSON, "json", false, "print the full pipeline result as JSON")
	return query
}
