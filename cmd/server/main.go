package main

import (
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	auth "github.com/ukcheckpoints/go-auth"
	"github.com/ukcheckpoints/go-auth/activitymap"
	"github.com/ukcheckpoints/go-auth/mailer/sendgrid"
	"github.com/ukcheckpoints/go-auth/stripe"
)

func main() {
	logger := auth.DefaultLogger()
	cfg := LoadConfig()

	if cfg.SigningKey == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	sqldb, err := sql.Open("postgres", cfg.DatabaseDSN)
	if err != nil {
		logger.Error("failed to open database: %v", err)
		os.Exit(1)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	repo := auth.NewRepositoryManager(bunDB)
	repo.MustValidate()

	provider := auth.NewUserProvider(repo.Users()).WithLogger(logger)
	activity := activitymap.NewLogSink(logger)

	auther := auth.NewAuthenticator(provider, repo.Users(), cfg).
		WithLogger(logger).
		WithActivitySink(activity)

	httpAuth, err := auth.NewHTTPAuthenticator(auther, cfg)
	if err != nil {
		logger.Error("failed to build http authenticator: %v", err)
		os.Exit(1)
	}

	var mailer auth.Mailer
	if cfg.SendgridAPIKey != "" {
		mailer, err = sendgrid.New(sendgrid.Config{
			APIKey:                  cfg.SendgridAPIKey,
			FromEmail:               cfg.MailFromEmail,
			FromName:                cfg.MailFromName,
			ResetPasswordTemplateID: cfg.SendgridTemplateID,
		})
		if err != nil {
			logger.Error("failed to build mailer: %v", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("SENDGRID_API_KEY not set, reset links go to the log")
		mailer = &auth.LogMailer{Logger: logger}
	}

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	auth.RegisterAuthRoutes(srv.Router(),
		auth.WithControllerLogger(logger),
		auth.WithControllerRepo(repo),
		auth.WithControllerTokens(auther.TokenService()),
		auth.WithControllerAuther(httpAuth),
		auth.WithControllerMailer(mailer),
		auth.WithControllerResetURL(cfg.ResetURL),
		auth.WithControllerActivitySink(activity),
	)

	if cfg.StripeWebhookSecret != "" {
		webhook := stripe.NewWebhookHandler(repo.Users(), cfg.StripeWebhookSecret).
			WithLogger(logger)
		srv.Router().Post("/stripe/webhook", webhook.Handle)
	}

	srv.Serve(cfg.Addr)

	WaitExitSignal()
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
