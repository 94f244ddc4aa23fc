package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/zmurilzx/treon/app/models"
	"github.com/zmurilzx/treon/app/repository"
	"github.com/zmurilzx/treon/internal/pkg/usercontext"
)

type spreadsheetRequest struct {
	Name     string `json:"name" validate:"required,max=150"`
	Kind     string `json:"kind" validate:"required,oneof=BANKROLL PROCEDURES EARNINGS ACCOUNTS"`
	DataJSON string `json:"data_json"`
}

// HandleSpreadsheetCreate stores a new sheet for the caller.
func HandleSpreadsheetCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req spreadsheetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	req.Kind = strings.ToUpper(req.Kind)
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": validationMessage(err)})
	}

	sheet := &models.Spreadsheet{
		UserID:   userCtx.UserID,
		Name:     req.Name,
		Kind:     req.Kind,
		DataJSON: req.DataJSON,
	}
	if err := repository.GetGlobalFactory().GetSpreadsheetRepository().Create(sheet); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "spreadsheet_create_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(sheet)
}

// HandleSpreadsheetList returns the caller's sheets, optionally filtered by
// ?kind=BANKROLL.
func HandleSpreadsheetList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	sheetRepo := repository.GetGlobalFactory().GetSpreadsheetRepository()

	kind := strings.ToUpper(c.Query("kind"))
	var (
		sheets []models.Spreadsheet
		err    error
	)
	if kind != "" {
		sheets, err = sheetRepo.GetByUserIDAndKind(userCtx.UserID, kind)
	} else {
		sheets, err = sheetRepo.GetByUserID(userCtx.UserID)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "spreadsheet_list_failed"})
	}

	return c.JSON(fiber.Map{"spreadsheets": sheets})
}

// HandleSpreadsheetGet returns one sheet, owner only.
func HandleSpreadsheetGet(c *fiber.Ctx) error {
	sheet, err := findOwnedSpreadsheet(c)
	if err != nil {
		return err
	}
	return c.JSON(sheet)
}

// HandleSpreadsheetUpdate replaces name and cell data.
func HandleSpreadsheetUpdate(c *fiber.Ctx) error {
	sheet, err := findOwnedSpreadsheet(c)
	if err != nil {
		return err
	}

	var req struct {
		Name     string `json:"name"`
		DataJSON string `json:"data_json"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}

	if req.Name != "" {
		sheet.Name = req.Name
	}
	if req.DataJSON != "" {
		sheet.DataJSON = req.DataJSON
	}

	if err := repository.GetGlobalFactory().GetSpreadsheetRepository().Update(sheet); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "spreadsheet_update_failed"})
	}
	return c.JSON(sheet)
}

// HandleSpreadsheetDelete removes one sheet, owner only.
func HandleSpreadsheetDelete(c *fiber.Ctx) error {
	sheet, err := findOwnedSpreadsheet(c)
	if err != nil {
		return err
	}

	if err := repository.GetGlobalFactory().GetSpreadsheetRepository().Delete(sheet.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "spreadsheet_delete_failed"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func findOwnedSpreadsheet(c *fiber.Ctx) (*models.Spreadsheet, error) {
	userCtx := usercontext.GetUserContext(c)

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid_id")
	}

	sheet, err := repository.GetGlobalFactory().GetSpreadsheetRepository().GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "spreadsheet_not_found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "spreadsheet_lookup_failed")
	}
	if sheet.UserID != userCtx.UserID {
		return nil, fiber.NewError(fiber.StatusNotFound, "spreadsheet_not_found")
	}
	return sheet, nil
}
