package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/shalak/assetgridapp/internal/auth"
	"github.com/shalak/assetgridapp/internal/automation"
	"github.com/shalak/assetgridapp/internal/model"
	"github.com/shalak/assetgridapp/internal/store"
)

const runHistoryLimit = 50

type Handler struct {
	transactions *store.TransactionStore
	automations  *store.AutomationStore
	engine       *automation.Engine
	registry     *automation.Registry
}

func NewHandler(transactions *store.TransactionStore, automations *store.AutomationStore, engine *automation.Engine, registry *automation.Registry) *Handler {
	return &Handler{
		transactions: transactions,
		automations:  automations,
		engine:       engine,
		registry:     registry,
	}
}

// ListAutomations handles GET /api/automations
func (h *Handler) ListAutomations(c *fiber.Ctx) error {
	user := auth.GetUser(c)
	if user == nil {
		return automation.UnauthorizedError("Missing auth token")
	}

	summaries, err := h.automations.ListForUser(c.Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summaries})
}

// CreateAutomation handles POST /api/automations
func (h *Handler) CreateAutomation(c *fiber.Ctx) error {
	user := auth.GetUser(c)
	if user == nil {
		return automation.UnauthorizedError("Missing auth token")
	}

	var rule automation.AutomationRule
	if err := c.BodyParser(&rule); err != nil {
		return automation.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	rule.ID = uuid.New()
	rule.Version = automation.RuleSchemaVersion

	if err := automation.ValidateRule(h.registry, &rule); err != nil {
		return err
	}
	if err := h.automations.CreateRule(c.Context(), &rule, user.ID); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": rule})
}

// GetAutomation handles GET /api/automations/:id
func (h *Handler) GetAutomation(c *fiber.Ctx) error {
	rule, _, err := h.loadAuthorized(c, automation.PermissionRead)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rule})
}

// UpdateAutomation handles PUT /api/automations/:id. The rule is replaced
// wholesale; there is no partial patch.
func (h *Handler) UpdateAutomation(c *fiber.Ctx) error {
	existing, _, err := h.loadAuthorized(c, automation.PermissionModify)
	if err != nil {
		return err
	}

	var rule automation.AutomationRule
	if err := c.BodyParser(&rule); err != nil {
		return automation.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	rule.ID = existing.ID
	rule.Version = automation.RuleSchemaVersion

	if err := automation.ValidateRule(h.registry, &rule); err != nil {
		return err
	}
	if err := h.automations.UpdateRule(c.Context(), &rule); err != nil {
		return mapStoreError(err, "Automation")
	}
	return c.JSON(fiber.Map{"data": rule})
}

// DeleteAutomation handles DELETE /api/automations/:id
func (h *Handler) DeleteAutomation(c *fiber.Ctx) error {
	rule, _, err := h.loadAuthorized(c, automation.PermissionModify)
	if err != nil {
		return err
	}
	if err := h.automations.DeleteRule(c.Context(), rule.ID); err != nil {
		return mapStoreError(err, "Automation")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetEnabled handles PUT /api/automations/:id/enabled. The flag is per user;
// other users' bindings are untouched.
func (h *Handler) SetEnabled(c *fiber.Ctx) error {
	rule, user, err := h.loadAuthorized(c, automation.PermissionModify)
	if err != nil {
		return err
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&body); err != nil {
		return automation.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}

	if err := h.automations.SetEnabled(c.Context(), user.ID, rule.ID, body.Enabled); err != nil {
		return mapStoreError(err, "Automation")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"enabled": body.Enabled}})
}

// RunAutomation handles POST /api/automations/:id/run. The engine does its
// own permission check; the optional filter narrows the candidate set.
func (h *Handler) RunAutomation(c *fiber.Ctx) error {
	user := auth.GetUser(c)
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var body struct {
		Filter string `json:"filter"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return automation.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
		}
	}

	applied, err := h.engine.RunNow(c.Context(), user, id, body.Filter)
	if err != nil {
		return mapStoreError(err, "Automation")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"applied": applied}})
}

// ListRuns handles GET /api/automations/:id/runs
func (h *Handler) ListRuns(c *fiber.Ctx) error {
	rule, _, err := h.loadAuthorized(c, automation.PermissionRead)
	if err != nil {
		return err
	}
	runs, err := h.automations.ListRuns(c.Context(), rule.ID, runHistoryLimit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": runs})
}

// CreateTransaction handles POST /api/transactions. The write commits first;
// create-trigger automations then run against the stored row, and the
// response carries the post-automation state.
func (h *Handler) CreateTransaction(c *fiber.Ctx) error {
	if user := auth.GetUser(c); user == nil {
		return automation.UnauthorizedError("Missing auth token")
	}

	var tx model.Transaction
	if err := c.BodyParser(&tx); err != nil {
		return automation.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}

	if err := h.transactions.Create(c.Context(), &tx); err != nil {
		return err
	}
	h.engine.OnTransactionCreated(c.Context(), &tx)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": tx})
}

// UpdateTransaction handles PUT /api/transactions/:id
func (h *Handler) UpdateTransaction(c *fiber.Ctx) error {
	if user := auth.GetUser(c); user == nil {
		return automation.UnauthorizedError("Missing auth token")
	}

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var tx model.Transaction
	if err := c.BodyParser(&tx); err != nil {
		return automation.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	tx.ID = id

	if err := h.transactions.Update(c.Context(), &tx); err != nil {
		return mapStoreError(err, "Transaction")
	}
	h.engine.OnTransactionModified(c.Context(), &tx)

	return c.JSON(fiber.Map{"data": tx})
}

// loadAuthorized resolves the path rule and checks the requesting user's
// binding against the required permission.
func (h *Handler) loadAuthorized(c *fiber.Ctx, required automation.Permission) (*automation.AutomationRule, *model.UserContext, error) {
	user := auth.GetUser(c)
	if user == nil {
		return nil, nil, automation.UnauthorizedError("Missing auth token")
	}

	id, err := parseID(c)
	if err != nil {
		return nil, nil, err
	}

	rule, err := h.automations.GetRule(c.Context(), id)
	if err != nil {
		return nil, nil, mapStoreError(err, "Automation")
	}

	binding, err := h.automations.GetBinding(c.Context(), user.ID, id)
	if err != nil {
		return nil, nil, err
	}
	if err := automation.Authorize(user, binding, required); err != nil {
		return nil, nil, err
	}
	return rule, user, nil
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, automation.NewAppError("INVALID_ID", 400, "Invalid id in path")
	}
	return id, nil
}

func mapStoreError(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return automation.NotFoundError(what)
	}
	return err
}
