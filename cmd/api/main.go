package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MasonFlint44/budgetbros-budget-api/internal/accounts"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/audit"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/auth"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/budgets"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/categories"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/config"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/currencies"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/ledger"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/payees"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/router"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/tags"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("error creating pgx pool: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("error pinging database: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "internal server error"

			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
				message = fiberErr.Message
			}

			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})

	app.Use(router.CorsMiddleware(cfg.CORSOrigin))
	app.Use(requestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	// Dev token endpoint
	if strings.EqualFold(os.Getenv("ENV"), "dev") {
		app.Get("/dev/token", func(c *fiber.Ctx) error {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"email": "dev@example.com",
				"exp":   time.Now().Add(24 * time.Hour).Unix(),
			})
			signed, err := token.SignedString(cfg.JWTSecret)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
			}
			return c.JSON(fiber.Map{"token": signed})
		})
	}

	userRepo := auth.NewRepo(pool)
	budgetRepo := budgets.NewRepository(pool)
	store := ledger.NewPgStore(pool)

	ledgerHandler := ledger.NewHandler(ledger.NewService(store))
	ledgerHandler.Audit = auditRecorder(pool)

	r := &router.Router{
		BudgetHandler:   budgets.NewHandler(budgetRepo),
		AccountHandler:  accounts.NewHandler(accounts.NewRepository(pool)),
		CategoryHandler: categories.NewHandler(categories.NewRepository(pool)),
		PayeeHandler:    payees.NewHandler(payees.NewRepository(pool)),
		TagHandler:      tags.NewHandler(tags.NewRepository(pool)),
		CurrencyHandler: currencies.NewHandler(currencies.NewRepository(pool)),
		LedgerHandler:   ledgerHandler,
		AuthMW:          auth.Middleware(cfg.JWTSecret, userRepo),
		WriteLimiter:    router.RateLimitWrite(cfg.RateLimitWriteMax, cfg.RateLimitWriteWindow),
	}
	r.RegisterRoutes(app)

	log.Println("Listening on port", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

// auditRecorder writes one audit row per committed ledger mutation
// (best-effort, off the request path).
func auditRecorder(pool *pgxpool.Pool) ledger.AuditFunc {
	return func(c *fiber.Ctx, action string, budgetID uuid.UUID, entityID *uuid.UUID) {
		var userID *uuid.UUID
		if uid, ok := auth.UserID(c); ok {
			userID = &uid
		}
		ip := c.IP()

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = audit.Write(ctx, pool, audit.Entry{
				UserID:     userID,
				BudgetID:   &budgetID,
				Action:     action,
				EntityType: "transaction",
				EntityID:   entityID,
				IP:         &ip,
			})
		}()
	}
}

func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		log.Printf("%s %s %d %s", c.Method(), c.Path(), status, time.Since(start))
		return err
	}
}
