package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/exam-service/internal/handlers"
	"github.com/SAP-F-2025/exam-service/internal/utils"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API together with the job worker",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("port", "", "HTTP listen port (default from PORT or 8080)")
	f.Bool("worker", true, "Run the job worker and scheduler in this process")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the job worker and the delayed job scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			errCh := a.startWorker(ctx)
			select {
			case <-ctx.Done():
				return nil
			case err := <-errCh:
				return err
			}
		},
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	errCh := make(chan error, 3)
	if v := viperForCmd(cmd); v.GetBool("worker") {
		errCh = a.startWorker(ctx)
	}

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(a.logger))
	handlers.NewHandlerManager(a.services, a.logger).SetupRoutes(router)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.logger.Info("Starting HTTP server", "addr", srv.Addr, "environment", a.cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		a.logger.Warn("HTTP server shutdown failed", "error", serr)
	}
	a.logger.Info("Server stopped")
	return err
}

// startWorker re-registers pending exam transitions, then runs the job queue
// consumer and the delayed job poller until ctx is done.
func (a *app) startWorker(ctx context.Context) chan error {
	errCh := make(chan error, 3)

	go func() {
		if err := a.queue.Run(ctx); err != nil {
			errCh <- fmt.Errorf("job queue: %w", err)
		}
	}()
	go func() {
		if err := a.jobs.Run(ctx); err != nil {
			errCh <- fmt.Errorf("job scheduler: %w", err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-a.queue.Running():
		}
		summary, err := a.services.Exam().ReconcilePending(ctx)
		if err != nil {
			a.logger.Error("Failed to reconcile pending exams", "error", err)
			return
		}
		a.logger.Info("Reconciled pending exams", "rescheduled", summary.Rescheduled, "concluding", summary.Concluding)
	}()

	return errCh
}
