package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"shopcore/pkg/common/amqp"
	"shopcore/pkg/common/config"
	"shopcore/pkg/domain/service"
	"shopcore/pkg/infrastructure/mysql"
	"shopcore/pkg/transport"
)

const appName = "shopcore"

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := &cli.App{
		Name:  appName,
		Usage: "order placement and inventory consistency engine",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: runMigrations,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("application failed")
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Parse(appName)
	if err != nil {
		return err
	}

	db, err := mysql.Connect(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := mysql.Migrate(db); err != nil {
		return err
	}

	dispatcher, err := amqp.NewDispatcher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	orderService := service.NewOrderService(
		mysql.NewUnitOfWork(db),
		mysql.NewOrderRepository(db),
		dispatcher,
		dispatcher,
	)
	reportService := service.NewReportService(mysql.NewReportRepository(db))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: transport.Router(orderService, reportService),
	}

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case sig := <-killSignalChan():
			log.WithField("signal", sig.String()).Info("shutting down")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runMigrations(_ *cli.Context) error {
	cfg, err := config.Parse(appName)
	if err != nil {
		return err
	}

	db, err := mysql.Connect(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := mysql.Migrate(db); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func killSignalChan() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
