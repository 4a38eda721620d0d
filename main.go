package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"engagement-rewards-system/config"
	"engagement-rewards-system/handlers"
	"engagement-rewards-system/middleware"
	"engagement-rewards-system/models"
	"engagement-rewards-system/services"
	"engagement-rewards-system/utils"
	"engagement-rewards-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "engagement-rewards",
		Short:         "Referral, rank and task reward backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, sweeper and ledger jobs",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update database tables",
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, _, err := openDatabase(); err != nil {
					return err
				}
				log.Println("✅ Migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "seed-levels",
			Short: "Write the rank table into the levels table",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, db, err := openDatabase()
				if err != nil {
					return err
				}
				ranks, err := loadRanks(cfg)
				if err != nil {
					return err
				}
				_, err = services.NewLevelService(db, ranks).Seed(cmd.Context())
				return err
			},
		},
		&cobra.Command{
			Use:   "audit-ledger",
			Short: "Compare every user's points with their ledger entries",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, db, err := openDatabase()
				if err != nil {
					return err
				}
				ranks, err := loadRanks(cfg)
				if err != nil {
					return err
				}
				drifts, err := services.NewLedgerAuditor(services.NewLedgerService(db), ranks).Audit(cmd.Context())
				if err != nil {
					return err
				}
				if len(drifts) > 0 {
					return fmt.Errorf("%d user(s) drift from the ledger", len(drifts))
				}
				return nil
			},
		},
	)
	return root
}

func openDatabase() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return cfg, db, nil
}

func loadRanks(cfg *config.Config) (*services.RankTable, error) {
	if cfg.RanksFile == "" {
		return services.DefaultRankTable(), nil
	}
	data, err := os.ReadFile(cfg.RanksFile)
	if err != nil {
		return nil, fmt.Errorf("read rank table: %w", err)
	}
	return services.LoadRankTable(data)
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, db, err := openDatabase()
	if err != nil {
		return err
	}
	if err := cfg.RequireServe(); err != nil {
		return err
	}
	ranks, err := loadRanks(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := services.NewLevelService(db, ranks).Seed(ctx); err != nil {
		log.Printf("⚠️  Level seeding failed: %v", err)
	}

	oracle := services.NewSocialDataClient(cfg.SocialDataBaseURL, cfg.SocialDataAPIKey, cfg.OracleTimeout)
	ledgerService := services.NewLedgerService(db)
	referralService := services.NewReferralService(db, ranks, ledgerService)
	userService := services.NewUserService(db, ranks, ledgerService, referralService, cfg.MaxReferralDepth)
	taskService := services.NewTaskService(db, oracle, cfg.OracleTimeout)
	completionService := services.NewTaskCompletionService(db, ranks, ledgerService, oracle, oracle, cfg.OracleTimeout)
	auditor := services.NewLedgerAuditor(ledgerService, ranks)

	var exporter *services.LedgerExporter
	if cfg.R2().Enabled() {
		store, err := utils.NewR2Store(ctx, cfg.R2())
		if err != nil {
			return fmt.Errorf("failed to initialize R2 client: %w", err)
		}
		exporter = services.NewLedgerExporter(ledgerService, store, "ledger")
	} else {
		log.Println("⚠️  R2 not configured, ledger export disabled")
	}

	sched, err := services.StartLedgerJobs(ctx, auditor, cfg.AuditInterval, exporter, cfg.ExportInterval)
	if err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("Scheduler shutdown: %v", err)
		}
	}()

	sweeper := workers.NewVerificationSweeper(db, completionService, cfg.SweepInterval, cfg.SweepBatchSize)
	sweeper.Start(ctx)

	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))

	allowedOrigins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if o := strings.TrimSpace(origin); o != "" {
			allowedOrigins = append(allowedOrigins, o)
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-Admin-Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupUserRoutes(app, userService, completionService)
	handlers.SetupTaskRoutes(app, taskService, ranks)
	handlers.SetupAdminRoutes(app, taskService, auditor, handlers.AdminCredentials{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ CORS configured for origins: %s", strings.Join(allowedOrigins, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}
