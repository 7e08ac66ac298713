// Command chatprobe runs a single companion turn from a JSON file, for
// checking provider wiring and prompt behavior without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/bme-companion/cmd/mainconfig"
	"github.com/wolfman30/bme-companion/internal/app/bootstrap"
	appconfig "github.com/wolfman30/bme-companion/internal/config"
	"github.com/wolfman30/bme-companion/internal/conversation"
	"github.com/wolfman30/bme-companion/pkg/logging"
)

var (
	offline bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "chatprobe",
	Short:         "Run one companion turn against the configured LLM provider",
	SilenceErrors: true,
	SilenceUsage:  true,
}

var turnCmd = &cobra.Command{
	Use:   "turn <request.json>",
	Short: "Handle one turn from a POST /api/chat body and print the response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := loadChatRequest(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		service, closeFn, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		return runTurn(ctx, service, req, cmd.OutOrStdout())
	},
}

var routeCmd = &cobra.Command{
	Use:   "route <request.json>",
	Short: "Print metrics and the frame a neutral analysis would route to, without any model call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := loadChatRequest(args[0])
		if err != nil {
			return err
		}
		return runRoute(req, cmd.OutOrStdout())
	},
}

func init() {
	turnCmd.Flags().BoolVar(&offline, "offline", false, "use the stub service instead of a provider")
	turnCmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "overall deadline for the turn")
	rootCmd.AddCommand(turnCmd, routeCmd)
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadChatRequest(path string) (conversation.ChatRequest, error) {
	var req conversation.ChatRequest
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return req, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func buildService(ctx context.Context) (conversation.Service, func(), error) {
	if offline {
		return conversation.NewStubService(), func() {}, nil
	}
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, "text", os.Stderr)

	deps := bootstrap.Deps{}
	if cfg.BedrockModelID != "" && cfg.LLMProvider != bootstrap.ProviderGemini {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		deps.AWS = &awsCfg
	}
	companion, err := bootstrap.BuildCompanionService(ctx, cfg, deps, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("probing provider", "provider", companion.Provider)
	return companion.Service, func() { _ = companion.Close() }, nil
}

func runTurn(ctx context.Context, service conversation.Service, req conversation.ChatRequest, out io.Writer) error {
	start := time.Now()
	resp, err := service.HandleTurn(ctx, conversation.TurnRequest{
		ConversationID: req.ConversationID,
		History:        req.History,
		PriorMetrics:   req.Metrics,
		MetricsState:   req.MetricsState,
		Reflection:     req.Reflections,
	})
	if err != nil {
		return fmt.Errorf("turn failed after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

type routeReport struct {
	Frame   conversation.Frame           `json:"frame"`
	Reason  string                       `json:"reason"`
	Metrics conversation.MetricsSnapshot `json:"metrics"`
}

func runRoute(req conversation.ChatRequest, out io.Writer) error {
	history, err := conversation.ValidateHistory(req.History)
	if err != nil {
		return err
	}
	analysis := conversation.NeutralAnalysis()
	metrics := conversation.ComputeMetrics(history)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(routeReport{
		Frame:   conversation.SelectFrame(analysis, metrics),
		Reason:  conversation.FrameReason(analysis, metrics),
		Metrics: metrics,
	})
}
