package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/exploration-core/internal/campaignd"
	"github.com/GoSim-25-26J-441/exploration-core/internal/evaluator"
	"github.com/GoSim-25-26J-441/exploration-core/internal/exploration"
	"github.com/GoSim-25-26J-441/exploration-core/internal/generator"
	"github.com/GoSim-25-26J-441/exploration-core/internal/history"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/config"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/utils"
)

const (
	shutdownTimeout = 10 * time.Second
	notifyTimeout   = 2 * time.Minute
)

type runFlags struct {
	workers     int
	maxEvals    int
	campaignDir string
	httpAddr    string
	grpcAddr    string
}

func newRunCmd(root *rootFlags, resume bool) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			return runCampaign(cmd.Context(), cfg, resume || cfg.Exploration.Resume, cmd.OutOrStdout())
		},
	}
	if resume {
		cmd.Use = "resume"
		cmd.Short = "Continue a campaign from its checkpoint"
	}
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "override exploration.workers")
	cmd.Flags().IntVar(&flags.maxEvals, "max-evals", 0, "override exploration.max_evals")
	cmd.Flags().StringVar(&flags.campaignDir, "campaign-dir", "", "override exploration.campaign_dir")
	cmd.Flags().StringVar(&flags.httpAddr, "http-addr", "", "serve the HTTP API on this address")
	cmd.Flags().StringVar(&flags.grpcAddr, "grpc-addr", "", "serve the gRPC API on this address")
	return cmd
}

// apply copies explicitly set flags over the loaded configuration.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Campaign) error {
	if cmd.Flags().Changed("workers") {
		if f.workers <= 0 {
			return fmt.Errorf("--workers must be positive, got %d", f.workers)
		}
		cfg.Exploration.Workers = f.workers
	}
	if cmd.Flags().Changed("max-evals") {
		if f.maxEvals < 0 {
			return fmt.Errorf("--max-evals cannot be negative, got %d", f.maxEvals)
		}
		cfg.Exploration.MaxEvals = f.maxEvals
	}
	if f.campaignDir != "" {
		cfg.Exploration.CampaignDir = f.campaignDir
	}
	if f.httpAddr != "" || f.grpcAddr != "" {
		if cfg.Server == nil {
			cfg.Server = &config.Server{}
		}
		if f.httpAddr != "" {
			cfg.Server.HTTPAddr = f.httpAddr
		}
		if f.grpcAddr != "" {
			cfg.Server.GRPCAddr = f.grpcAddr
		}
	}
	return nil
}

// runCampaign builds the campaign from cfg, serves it until it stops and
// prints a summary. The returned error is non-nil only for fatal failures.
func runCampaign(ctx context.Context, cfg *config.Campaign, resume bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.MkdirAll(cfg.Exploration.CampaignDir, 0o755); err != nil {
		return fmt.Errorf("create campaign dir: %w", err)
	}

	var cp *history.Checkpoint
	if resume {
		loaded, err := history.LoadCheckpoint(cfg.Exploration.CheckpointPath())
		if err != nil {
			return fmt.Errorf("cannot resume: %w", err)
		}
		cp = loaded
	}

	gen, err := generator.New(cfg.Generator, &cfg.Space)
	if err != nil {
		return fmt.Errorf("build generator: %w", err)
	}
	pool, err := evaluator.New(cfg.Evaluator, &cfg.Space, cfg.Exploration.CampaignDir, logger.With("component", "evaluator"))
	if err != nil {
		return fmt.Errorf("build evaluator: %w", err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Warn("evaluator close failed", "error", err)
		}
	}()

	opts, err := exploration.OptionsFromConfig(cfg, cp, logger.Default)
	if err != nil {
		return err
	}
	opts.Bus = exploration.NewBus(0)
	orch, err := exploration.New(gen, pool, opts)
	if err != nil {
		return err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	stopSignals := handleSignals(orch, cancelRun)
	defer stopSignals()

	var (
		res    *exploration.Result
		runErr error
	)
	done := make(chan struct{})
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer close(done)
		defer opts.Bus.Close()
		res, runErr = orch.Run(gctx)
		return runErr
	})
	if srv := cfg.Server; srv != nil {
		if srv.HTTPAddr != "" {
			g.Go(func() error { return serveHTTP(gctx, done, srv.HTTPAddr, orch) })
		}
		if srv.GRPCAddr != "" {
			g.Go(func() error { return serveGRPC(gctx, done, srv.GRPCAddr, orch) })
		}
	}
	groupErr := g.Wait()
	logger.Debug("event bus closed", "published", opts.Bus.Published(), "dropped", opts.Bus.Dropped())
	if res == nil {
		return groupErr
	}

	if cfg.Notify != nil {
		notifyCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		err := campaignd.NewNotifier(cfg.Notify).Send(notifyCtx, campaignd.PayloadFromResult(res, runErr))
		cancel()
		if err != nil {
			logger.Error("campaign notification failed", "campaign_id", res.CampaignID, "error", err)
		}
	}

	printSummary(out, res)
	if runErr != nil {
		return runErr
	}
	if groupErr != nil && !errors.Is(groupErr, context.Canceled) {
		return groupErr
	}
	return nil
}

// handleSignals turns the first SIGINT/SIGTERM into a graceful stop and a
// second one into an interrupt.
func handleSignals(orch *exploration.Orchestrator, interrupt context.CancelFunc) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})
	go func() {
		count := 0
		for {
			select {
			case sig := <-sigCh:
				count++
				if count == 1 {
					logger.Info("signal received, draining campaign (repeat to interrupt)", "signal", sig.String())
					orch.Stop()
					continue
				}
				logger.Warn("second signal received, interrupting campaign", "signal", sig.String())
				interrupt()
				return
			case <-quit:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(quit)
	}
}

func serveHTTP(ctx context.Context, done <-chan struct{}, addr string, orch *exploration.Orchestrator) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for HTTP on %s: %w", addr, err)
	}
	httpSrv := &http.Server{
		Handler:           campaignd.NewHTTPServer(orch).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", lis.Addr().String())
		errCh <- httpSrv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	case <-done:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
		_ = httpSrv.Close()
	}
	return nil
}

func serveGRPC(ctx context.Context, done <-chan struct{}, addr string, orch *exploration.Orchestrator) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for gRPC on %s: %w", addr, err)
	}
	// TODO: configure TLS before exposing the campaign API beyond localhost.
	grpcServer := grpc.NewServer()
	campaignd.RegisterCampaignServiceServer(grpcServer, campaignd.NewCampaignGRPCServer(orch))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", "addr", lis.Addr().String())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	case <-done:
	case <-ctx.Done():
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		grpcServer.Stop()
	}
	return nil
}

func printSummary(w io.Writer, res *exploration.Result) {
	printf(w, "campaign %s %s (%s) after %s\n", res.CampaignID, res.State, res.StopReason, utils.FormatDuration(res.Elapsed))
	printf(w, "  trials: %d completed, %d failed, %d cancelled\n",
		res.Counts[models.TrialStatusCompleted], res.Counts[models.TrialStatusFailed], res.Counts[models.TrialStatusCancelled])
	if res.Best != nil {
		printf(w, "  best: trial %d %s\n", res.Best.ID, formatValues(res.Best.Objectives))
		printf(w, "        at %s\n", formatValues(res.Best.Parameters))
	}
}
