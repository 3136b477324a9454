// Package app initializes every component of the application.
// app.go is the assembly point: DB pool, Discord session, the ledger,
// feature services and handlers, the bot and the scheduler, wired in
// dependency order.
package app

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/bot"
	"manaverse.gg/discord-bot/internal/config"
	"manaverse.gg/discord-bot/internal/db/postgres"
	"manaverse.gg/discord-bot/internal/features/admin"
	"manaverse.gg/discord-bot/internal/features/economy"
	"manaverse.gg/discord-bot/internal/features/moderation"
	"manaverse.gg/discord-bot/internal/features/presentation"
	"manaverse.gg/discord-bot/internal/features/quests"
	"manaverse.gg/discord-bot/internal/features/referrals"
	"manaverse.gg/discord-bot/internal/features/tasks"
	"manaverse.gg/discord-bot/internal/features/tickets"
	"manaverse.gg/discord-bot/internal/features/xp"
	"manaverse.gg/discord-bot/internal/jobs"
	"manaverse.gg/discord-bot/internal/store"
)

// App holds all application components.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	Session   *discordgo.Session
	Ledger    *economy.Ledger
}

// New creates and initializes the application. Initialization order
// matters; components depend on each other.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Database ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// === 2. Discord session ===
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.LogLevel = discordgo.LogWarning
	if cfg.AppEnv == "development" {
		session.LogLevel = discordgo.LogInformational
	}

	// === 3. State store and ledger ===
	st := store.NewPostgres(pool)
	ledger := economy.New(st, economy.ParamsFromConfig(cfg))
	if err := ledger.Load(ctx); err != nil {
		return nil, fmt.Errorf("ledger load: %w", err)
	}

	// === 4. Feature services ===
	moderationService := moderation.NewService(st, cfg)
	taskService := tasks.NewService(st, ledger, cfg)
	questService := quests.NewService(st, ledger, cfg)
	referralService := referrals.NewService(session, ledger, cfg)
	xpService := xp.NewService(st, ledger, cfg)
	ticketService := tickets.NewService(st, session, cfg)
	adminService := admin.NewService(cfg)
	presentationService := presentation.NewService(st, session, ledger, xpService, cfg)

	loaders := []struct {
		name string
		load func(context.Context) error
	}{
		{"moderation", moderationService.Load},
		{"tasks", taskService.Load},
		{"quests", questService.Load},
		{"xp", xpService.Load},
		{"tickets", ticketService.Load},
		{"presentation", presentationService.Load},
	}
	for _, l := range loaders {
		if err := l.load(ctx); err != nil {
			return nil, fmt.Errorf("%s state load: %w", l.name, err)
		}
	}

	// === 5. Handlers ===
	economyHandler := economy.NewHandler(ledger, cfg, session)
	taskHandler := tasks.NewHandler(taskService, cfg, session)
	questHandler := quests.NewHandler(questService, cfg, session)
	referralHandler := referrals.NewHandler(referralService, session)
	xpHandler := xp.NewHandler(xpService, session)
	ticketHandler := tickets.NewHandler(ticketService, session)
	adminHandler := admin.NewHandler(adminService, ledger, cfg, session)

	// === 6. Bot ===
	b := bot.New(
		session, cfg,
		ledger,
		moderationService, referralService, xpService, adminService,
		economyHandler, taskHandler, questHandler, referralHandler,
		xpHandler, ticketHandler, adminHandler,
	)

	// === 7. Scheduler ===
	isStaff := func(userID string) bool {
		member, err := session.GuildMember(cfg.GuildID, userID)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Debug("staff check member fetch failed")
			return false
		}
		for _, r := range member.Roles {
			if (cfg.AdminRoleID != "" && r == cfg.AdminRoleID) ||
				(cfg.ModRoleID != "" && r == cfg.ModRoleID) {
				return true
			}
		}
		return false
	}
	scheduler := jobs.NewScheduler(cfg, ledger, xpService, presentationService, isStaff, b.SendMessage)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		DB:        pool,
		Session:   session,
		Ledger:    ledger,
	}, nil
}

// runMigrations applies all SQL migrations.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001KVTables},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		log.Infof("migration %d applied", m.version)
	}

	return nil
}

// The SQL migration is embedded in code for deployment simplicity. All
// bot state rides a single JSONB table keyed by logical table name; see
// internal/store for the access layer.

var migration001KVTables = `
CREATE TABLE IF NOT EXISTS kv_tables (
    table_name VARCHAR(64) NOT NULL,
    key VARCHAR(64) NOT NULL DEFAULT 'data',
    value JSONB NOT NULL,
    updated_at TIMESTAMP DEFAULT NOW(),
    PRIMARY KEY (table_name, key)
);
`
