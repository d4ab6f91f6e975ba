package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"membership_sync/internal/app"
	"membership_sync/internal/infra/config"
	"membership_sync/internal/infra/crm"
	idb "membership_sync/internal/infra/database"
	"membership_sync/internal/infra/logger"
	"membership_sync/internal/infra/mailinglist"
	"membership_sync/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// env is everything a command needs, built once from the configuration.
type env struct {
	cfg    *config.AppConfig
	log    *logrus.Entry
	db     *sql.DB
	ledger *idb.SQLLedger
}

func (e *env) Close() {
	if err := e.db.Close(); err != nil {
		e.log.WithError(err).Warn("Failed to close database")
	}
}

// setup loads the full sync configuration and opens the ledger.
func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	return openEnv(ctx, cfg)
}

// setupLedger is setup for commands that only touch the ledger; it needs just DATABASE_URL.
func setupLedger(ctx context.Context) (*env, error) {
	cfg, err := config.LoadLedger()
	if err != nil {
		return nil, fmt.Errorf("could not load ledger configuration: %w", err)
	}
	return openEnv(ctx, cfg)
}

func openEnv(ctx context.Context, cfg *config.AppConfig) (*env, error) {
	log := logrus.NewEntry(logger.New(cfg))
	log.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"telegram":    cfg.TelegramEnabled(),
	}).Info("Configuration loaded")

	db, dialect, err := idb.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	log.WithField("dialect", dialect).Info("Database connection established successfully.")

	if err := idb.Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return &env{cfg: cfg, log: log, db: db, ledger: idb.NewSQLLedger(db, dialect)}, nil
}

// newBot creates the Telegram bot. Offline bots can send but do not poll.
func newBot(cfg *config.AppConfig, log *logrus.Entry, offline bool) (*telebot.Bot, error) {
	pref := telebot.Settings{
		Token:   cfg.TelegramToken,
		Offline: offline,
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler error")
		},
	}
	if !offline {
		pref.Poller = &telebot.LongPoller{Timeout: 10 * time.Second}
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return bot, nil
}

func newSyncService(e *env, reporter app.Reporter) (*app.SyncService, error) {
	cfg := e.cfg
	listOpts := mailinglist.Options{
		BaseURL:      cfg.MailingList.BaseURL,
		ListName:     cfg.MailingList.ListName,
		CookiePrefix: cfg.MailingList.SessionCookiePrefix,
		Timeout:      cfg.HTTPTimeout,
	}
	sessions, err := mailinglist.NewSessionClient(listOpts)
	if err != nil {
		return nil, fmt.Errorf("could not create mailing list session client: %w", err)
	}
	fetcher, err := mailinglist.NewListFetcher(listOpts)
	if err != nil {
		return nil, fmt.Errorf("could not create mailing list fetcher: %w", err)
	}

	crmClient := crm.NewClient(crm.Options{
		OAuthHost:    cfg.CRM.OAuthHost,
		APIHost:      cfg.CRM.APIHost,
		ClientID:     cfg.CRM.ClientID,
		ClientSecret: cfg.CRM.ClientSecret,
		RefreshToken: cfg.CRM.RefreshToken,
		AccountName:  cfg.CRM.AccountName,
		ReportName:   cfg.CRM.ReportName,
		PageSize:     cfg.CRM.PageSize,
		RateLimit:    cfg.CRM.RateLimit,
		Timeout:      cfg.HTTPTimeout,
	}, e.log)

	return app.NewSyncService(
		e.ledger,
		crmClient,
		sessions,
		fetcher,
		app.MailingListCredentials{Username: cfg.MailingList.Username, Password: cfg.MailingList.Password},
		reporter,
		e.log,
	), nil
}

// reporterFor returns the Telegram reporter when a bot is configured.
func reporterFor(e *env, bot *telebot.Bot) app.Reporter {
	if bot == nil {
		return app.NopReporter{}
	}
	return telegram.NewReporter(telegram.NewTelebotAdapter(bot), e.cfg.AdminTelegramID, e.log)
}
