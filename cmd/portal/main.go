package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"school_portal_core/internal/app"
	"school_portal_core/internal/domain/referral"
	domainTelegram "school_portal_core/internal/domain/telegram"
	"school_portal_core/internal/infra/blob"
	"school_portal_core/internal/infra/config"
	idb "school_portal_core/internal/infra/database"
	"school_portal_core/internal/infra/email"
	"school_portal_core/internal/infra/logger"
	"school_portal_core/internal/infra/ratelimit"
	"school_portal_core/internal/infra/scheduler"
	"school_portal_core/internal/infra/telegram"
)

// services is what the route layer consumes. HTTP routing lives outside this
// binary; here only the scheduler and the telegram commands call into it.
type services struct {
	Referrals   *app.ReferralService
	ReportCards *app.ReportCardService
	Payroll     *app.PayrollService
	Reminders   *app.ReminderService
	Pricing     *app.PricingService
	Inquiries   *app.InquiryService
}

func main() {
	fmt.Println("School portal core starting...")

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.For("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"driver":      cfg.DatabaseDriver,
		"email":       cfg.EmailProvider,
	}).Info("Configuration loaded")

	db, err := idb.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := idb.Migrate(context.Background(), db); err != nil {
		mainLogger.WithError(err).Fatal("Could not apply schema")
	}
	mainLogger.Info("Database connection established and schema applied")

	sender, err := newEmailSender(cfg)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not initialize email sender")
	}

	var bot *telebot.Bot
	var tgClient domainTelegram.Client
	if cfg.TelegramToken != "" {
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := logger.For("telebot").WithError(err)
				if c != nil && c.Sender() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID)
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		tgClient = telegram.NewTelebotAdapter(bot)
	} else {
		mainLogger.Info("TELEGRAM_TOKEN not set, payroll digests disabled")
	}

	limiter := ratelimit.NewMemoryStore(cfg.RateLimitMax, cfg.RateLimitWindow)
	svc := buildServices(cfg, db, sender, tgClient, limiter)

	reminderScheduler := scheduler.NewReminderScheduler(svc.Reminders, limiter, logger.For("scheduler"), scheduler.Specs{
		DayBefore:      cfg.CronSpecDayBefore,
		HourBefore:     cfg.CronSpecHourBefore,
		RateLimitSweep: cfg.CronSpecRateLimitSweep,
		Location:       cfg.DefaultLocation(),
	})
	if err := reminderScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start scheduler")
	}

	if bot != nil {
		telegramLogger := logger.For("telegram")
		telegram.RegisterBotCommands(bot, cfg.ManagerTelegramID, telegramLogger)
		telegram.RegisterManagerHandlers(context.Background(), bot, svc.Payroll, svc.Pricing, cfg.ManagerTelegramID, telegramLogger)
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.WithError(err).Error("Metrics listener stopped")
		}
	}()
	mainLogger.WithField("addr", cfg.MetricsAddr).Info("Application setup complete")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	reminderScheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		mainLogger.WithError(err).Warn("Metrics listener shutdown")
	}
	mainLogger.Info("Application shut down gracefully.")
}

func buildServices(cfg *config.AppConfig, db *sqlx.DB, sender email.Sender, tg domainTelegram.Client, limiter ratelimit.Store) *services {
	referralStore := idb.NewReferralStore(db)
	classStore := idb.NewClassStore(db)
	termStore := idb.NewTermStore(db)

	return &services{
		Referrals: app.NewReferralService(referralStore, referralStore, referral.NewRandomGenerator(),
			cfg.ReferralCreditAmount, logger.For("referrals")),
		ReportCards: app.NewReportCardService(idb.NewReportCardStore(db), newBlobService(cfg),
			cfg.ReportCardMaxUpload, logger.For("report_cards")),
		Payroll: app.NewPayrollService(idb.NewPayrollStore(db), tg, cfg.ManagerTelegramID, logger.For("payroll")),
		Reminders: app.NewReminderService(classStore, termStore, idb.NewReminderStore(db), sender,
			cfg.DefaultLocation(), cfg.ReminderWindow, logger.For("reminders")),
		Pricing:   app.NewPricingService(classStore, termStore, logger.For("pricing")),
		Inquiries: app.NewInquiryService(limiter, sender, cfg.AdminInbox, logger.For("inquiries")),
	}
}

func newEmailSender(cfg *config.AppConfig) (email.Sender, error) {
	log := logger.For("email")
	switch cfg.EmailProvider {
	case "resend":
		return email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, log), nil
	case "sendgrid":
		return email.NewSendgridSender(cfg.SendgridAPIKey, cfg.EmailFrom, log)
	default:
		return email.NewNoopSender(log), nil
	}
}

func newBlobService(cfg *config.AppConfig) *blob.Service {
	buckets := blob.Buckets{
		blob.AssetLegalDocuments: cfg.BucketLegalDocuments,
		blob.AssetResources:      cfg.BucketResources,
		blob.AssetSignatures:     cfg.BucketSignatures,
		blob.AssetReportCards:    cfg.BucketReportCards,
	}
	var signer blob.Signer = blob.DisabledSigner{}
	if cfg.OSSEndpoint != "" {
		oss, err := blob.NewOSSSigner(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
		if err != nil {
			logger.For("blob").WithError(err).Warn("OSS signer unavailable, signed URLs disabled")
		} else {
			signer = oss
		}
	}
	return blob.NewService(signer, buckets, cfg.SignedURLTTL)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
