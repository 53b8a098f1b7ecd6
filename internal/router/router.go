package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MasonFlint44/budgetbros-budget-api/internal/accounts"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/budgets"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/categories"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/currencies"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/ledger"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/payees"
	"github.com/MasonFlint44/budgetbros-budget-api/internal/tags"
)

type Router struct {
	BudgetHandler   *budgets.Handler
	AccountHandler  *accounts.Handler
	CategoryHandler *categories.Handler
	PayeeHandler    *payees.Handler
	TagHandler      *tags.Handler
	CurrencyHandler *currencies.Handler
	LedgerHandler   *ledger.Handler
	AuthMW          fiber.Handler
	WriteLimiter    fiber.Handler
}

func (r *Router) RegisterRoutes(app *fiber.App) {
	app.Get("/currencies", r.AuthMW, r.CurrencyHandler.List)

	app.Post("/budgets", r.AuthMW, r.WriteLimiter, r.BudgetHandler.Create)
	app.Get("/budgets", r.AuthMW, r.BudgetHandler.List)

	// Everything under a budget requires membership.
	b := app.Group("/budgets/:budgetID", r.AuthMW, r.BudgetHandler.RequireMember)
	b.Get("", r.BudgetHandler.Get)
	b.Get("/members", r.BudgetHandler.ListMembers)

	b.Post("/accounts", r.WriteLimiter, r.AccountHandler.Create)
	b.Get("/accounts", r.AccountHandler.List)
	b.Get("/accounts/:accountID", r.AccountHandler.Get)
	b.Patch("/accounts/:accountID", r.WriteLimiter, r.AccountHandler.Update)
	b.Delete("/accounts/:accountID", r.WriteLimiter, r.AccountHandler.Delete)

	b.Post("/categories", r.WriteLimiter, r.CategoryHandler.Create)
	b.Get("/categories", r.CategoryHandler.List)
	b.Get("/categories/:categoryID", r.CategoryHandler.Get)
	b.Patch("/categories/:categoryID", r.WriteLimiter, r.CategoryHandler.Update)
	b.Delete("/categories/:categoryID", r.WriteLimiter, r.CategoryHandler.Delete)

	b.Post("/payees", r.WriteLimiter, r.PayeeHandler.Create)
	b.Get("/payees", r.PayeeHandler.List)
	b.Get("/payees/:payeeID", r.PayeeHandler.Get)
	b.Patch("/payees/:payeeID", r.WriteLimiter, r.PayeeHandler.Update)
	b.Delete("/payees/:payeeID", r.WriteLimiter, r.PayeeHandler.Delete)

	b.Post("/tags", r.WriteLimiter, r.TagHandler.Create)
	b.Get("/tags", r.TagHandler.List)
	b.Get("/tags/:tagID", r.TagHandler.Get)
	b.Patch("/tags/:tagID", r.WriteLimiter, r.TagHandler.Update)
	b.Delete("/tags/:tagID", r.WriteLimiter, r.TagHandler.Delete)

	b.Post("/transactions", r.WriteLimiter, r.LedgerHandler.Create)
	b.Get("/transactions", r.LedgerHandler.List)
	b.Post("/transactions/bulk", r.WriteLimiter, r.LedgerHandler.Import)
	b.Get("/transactions/:transactionID", r.LedgerHandler.Get)
	b.Patch("/transactions/:transactionID", r.WriteLimiter, r.LedgerHandler.Update)
	b.Post("/transactions/:transactionID/split", r.WriteLimiter, r.LedgerHandler.Split)
	b.Delete("/transactions/:transactionID", r.WriteLimiter, r.LedgerHandler.Delete)

	b.Post("/transfers", r.WriteLimiter, r.LedgerHandler.CreateTransfer)
}
