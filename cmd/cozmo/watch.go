package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/spindlebot/cozmo"
	"github.com/spindlebot/cozmo/cevent"
	"github.com/spindlebot/cozmo/cpacket"
)

func watchCmd() *cobra.Command {
	var (
		addr        string
		metricsAddr string
		timeout     time.Duration
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to a robot and log its packet stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			}))

			cfg := cozmo.Config{RobotAddr: addr}
			if metricsAddr != "" {
				cfg.Metrics = prometheus.DefaultRegisterer
			}

			c, err := cozmo.New(log, cfg)
			if err != nil {
				return err
			}

			c.AddHandler(cevent.Kind(cpacket.KindEvent), func(e cevent.Event) {
				ev := e.Packet.(cpacket.Event)
				log.Info("Robot event", "len", len(ev.Data))
			})
			c.AddHandlerOnce(cevent.KindRobotFound, func(cevent.Event) {
				log.Info("Robot found", "firmware", c.FirmwareSignature())
			})

			ctx, stop := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM,
			)
			defer stop()

			c.Start(ctx)
			defer c.Stop()

			if metricsAddr != "" {
				r := chi.NewRouter()
				r.Handle("/metrics", promhttp.Handler())
				go func() {
					if err := http.ListenAndServe(metricsAddr, r); err != nil {
						log.Warn("Metrics server stopped", "err", err)
					}
				}()
				log.Info("Serving metrics", "addr", metricsAddr)
			}

			if err := c.Connect(); err != nil {
				return err
			}
			if err := c.WaitForReady(timeout); err != nil {
				return fmt.Errorf("handshake failed: %w", err)
			}
			log.Info("Robot ready", "state", c.State())

			<-ctx.Done()
			c.Disconnect()
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", cozmo.DefaultRobotAddr, "robot UDP endpoint")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "handshake deadline")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	return cmd
}
