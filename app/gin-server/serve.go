package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoockh/yoocv/config"
	"github.com/yoockh/yoocv/internal/api/handlers"
	"github.com/yoockh/yoocv/internal/api/middleware"
	"github.com/yoockh/yoocv/internal/api/routes"
	"github.com/yoockh/yoocv/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the progress relay and the pipeline workers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		apiOnly, _ := cmd.Flags().GetBool("api-only")
		return serve(cmd.Context(), apiOnly)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the pipeline workers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return work(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("api-only", false, "do not start pipeline workers in this process")
	rootCmd.AddCommand(serveCmd, workerCmd)
}

func setup(parent context.Context) (context.Context, context.CancelFunc, *application, error) {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").WithError(err).Error("invalid configuration")
		return nil, nil, nil, err
	}
	log := logger.New(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	a, err := build(ctx, cfg, log)
	if err != nil {
		stop()
		log.WithError(err).Error("startup failed")
		return nil, nil, nil, err
	}
	return ctx, stop, a, nil
}

func serve(parent context.Context, apiOnly bool) error {
	ctx, stop, a, err := setup(parent)
	if err != nil {
		return err
	}
	defer stop()
	defer a.Close()

	// events from workers in other processes arrive through the relay
	if err := a.relay.Start(ctx); err != nil {
		return err
	}
	if !apiOnly && a.cfg.WorkerCount > 0 {
		if err := a.startWorkers(ctx); err != nil {
			return err
		}
	}

	if !a.cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	routes.RegisterRoutes(r, routes.Deps{
		Documents: handlers.NewDocumentHandler(a.docs),
		Progress:  handlers.NewProgressHandler(a.docs, a.broadcaster, a.log, 0, nil),
		Jobs:      handlers.NewJobHandler(a.jobs),
		Admin:     handlers.NewAdminHandler(a.docs),
		JWT:       middleware.JWTOptions{Secret: a.cfg.JWTSecret},
		Logger:    a.log,
	})
	r.MaxMultipartMemory = a.cfg.MaxUploadBytes() + 1<<20

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("http shutdown")
	}
	stop()
	a.pool.Wait()
	return nil
}

func work(parent context.Context) error {
	ctx, stop, a, err := setup(parent)
	if err != nil {
		return err
	}
	defer stop()
	defer a.Close()

	if err := a.startWorkers(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.WithFields(logrus.Fields{"stream": a.cfg.TaskStream}).Info("worker shutting down")
	a.pool.Wait()
	return nil
}
