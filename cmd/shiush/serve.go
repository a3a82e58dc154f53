package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/tgienger/shiush/internal/offline"
	"github.com/tgienger/shiush/internal/schedule"
	"github.com/tgienger/shiush/internal/web"
)

const fetchTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var cacheStatus bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the offline cache in front of the web app",
		Long: `Serve the web app through the offline cache and keep the lists moving.

Examples:
  shiush serve
  shiush serve --addr :8787
  shiush serve --cache-status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Offline.Addr
			}
			logger := log.New(os.Stderr, "shiush: ", log.LstdFlags)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			s, cleanup, err := openSession(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			regCfg, err := cfg.Offline.Registration()
			if err != nil {
				return err
			}
			reg := offline.NewRegistration(s.db, regCfg,
				offline.WithFetcher(&http.Client{Timeout: fetchTimeout}),
				offline.WithLogger(logger),
				offline.WithReconciler(func(ctx context.Context) error {
					_, err := s.evaluator.Evaluate(ctx)
					return err
				}),
			)

			if cacheStatus {
				return printCacheStatus(cmd, reg)
			}

			// An unreachable origin leaves the previous cache in control
			if err := reg.Update(ctx, cfg.Offline.Version); err != nil {
				logger.Printf("offline: serving without %s: %v", cfg.Offline.Version, err)
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				schedule.NewPoller(s.evaluator, cfg.Schedule.PollInterval).Run(ctx)
			}()

			gin.SetMode(gin.ReleaseMode)
			err = web.NewServer(reg, logger).Run(ctx, addr)
			cancel()
			wg.Wait()
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&cacheStatus, "cache-status", false, "print stored caches and exit")

	return cmd
}

func printCacheStatus(cmd *cobra.Command, reg *offline.Registration) error {
	caches, err := reg.CacheStatus(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(caches) == 0 {
		fmt.Fprintln(out, "No caches stored")
		return nil
	}
	for _, c := range caches {
		fmt.Fprintf(out, "%s (%d entries)\n", c.Name, len(c.Keys))
		if len(c.Keys) > 0 {
			fmt.Fprintf(out, "  %s\n", strings.Join(c.Keys, "\n  "))
		}
	}
	return nil
}
