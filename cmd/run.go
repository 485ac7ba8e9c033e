package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
	"github.com/JakeFAU/sitemap-article-harvester/internal/server"
	"github.com/JakeFAU/sitemap-article-harvester/internal/sitemap"
)

type runOptions struct {
	sitemaps    []string
	metricsAddr string
}

// newRunCmd creates the 'run' subcommand.
func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest every configured sitemap and print the run summary",
		Long: `Fetches each sitemap, admits every distinct article URL once, fetches and
extracts the admitted articles, and emits one record per article to the
configured sink. SIGINT, SIGTERM or harvest.run_timeout_seconds stop
admission; admitted work still ends in a record. The run summary is printed
as JSON on stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvest(cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.sitemaps, "sitemap", nil, "sitemap URL to harvest (repeatable); overrides configured sitemaps")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /healthz, /readyz, /metrics and /v1/run on this address (overrides metrics.addr)")
	return cmd
}

func runHarvest(cmd *cobra.Command, opts *runOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	refs, err := appInstance.SitemapRefs()
	if err != nil {
		return err
	}
	if len(opts.sitemaps) > 0 {
		refs = sitemap.FromList(opts.sitemaps)
	}

	orch, err := appInstance.NewOrchestrator()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeout := cfg.RunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	addr := cfg.Metrics.Addr
	if opts.metricsAddr != "" {
		addr = opts.metricsAddr
	}

	// Bind before harvesting so a busy address fails at startup.
	var ln net.Listener
	if addr != "" {
		ln, err = server.Listen(addr)
		if err != nil {
			return err
		}
	}

	// The status server outlives cancellation of the run so /readyz keeps
	// reporting while admitted work drains; it stops once Run returns. Its
	// failures are logged and never cost the run summary.
	serverCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))
	defer stopServer()

	var g errgroup.Group
	if ln != nil {
		srv := server.New(logger)
		srv.Attach(orch)
		g.Go(func() error {
			if err := srv.Serve(serverCtx, ln); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
			return nil
		})
	}

	var (
		summary harvest.RunSummary
		runErr  error
	)
	g.Go(func() error {
		defer stopServer()
		summary, runErr = orch.Run(ctx, refs)
		return nil
	})
	_ = g.Wait()

	if runErr != nil && !errors.Is(runErr, harvest.ErrNoSitemapReachable) {
		return fmt.Errorf("run harvest: %w", runErr)
	}

	if summary.Canceled {
		logger.Warn("run was canceled before all sitemaps were admitted", zap.String("run_id", summary.RunID))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("run harvest: %w", runErr)
	}
	return nil
}
