package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zmurilzx/treon/app/models"
	"github.com/zmurilzx/treon/app/repository"
	"github.com/zmurilzx/treon/internal/pkg/surebet"
	"github.com/zmurilzx/treon/internal/pkg/usercontext"
)

type surebetRequest struct {
	EventName  string  `json:"event_name" validate:"required,max=255"`
	Bookmaker1 string  `json:"bookmaker1" validate:"required,max=100"`
	Bookmaker2 string  `json:"bookmaker2" validate:"required,max=100"`
	Odds1      float64 `json:"odds1" validate:"gt=1"`
	Odds2      float64 `json:"odds2" validate:"gt=1"`
	TotalStake int64   `json:"total_stake" validate:"gt=0"`
	EventDate  string  `json:"event_date" validate:"required"`
}

// HandleSurebetPreview computes the stake split without persisting anything.
// GET /surebets/preview?odds1=2.1&odds2=2.1&total_stake=100000
func HandleSurebetPreview(c *fiber.Ctx) error {
	odds1, err1 := strconv.ParseFloat(c.Query("odds1"), 64)
	odds2, err2 := strconv.ParseFloat(c.Query("odds2"), 64)
	totalStake, err3 := strconv.ParseInt(c.Query("total_stake"), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_parameters"})
	}

	alloc, err := surebet.Allocate(odds1, odds2, totalStake)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	margin, _ := surebet.Margin(odds1, odds2)
	return c.JSON(fiber.Map{
		"margin":       margin,
		"stake1":       alloc.Stake1,
		"stake2":       alloc.Stake2,
		"profit_cents": alloc.ProfitCents,
		"roi":          alloc.ROI,
	})
}

// HandleSurebetCreate records a new surebet with the computed stake split.
func HandleSurebetCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	req, eventDate, err := parseSurebetRequest(c)
	if err != nil {
		return err
	}

	alloc, allocErr := surebet.Allocate(req.Odds1, req.Odds2, req.TotalStake)
	if allocErr != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": allocErr.Error()})
	}

	bet := &models.Surebet{
		UUID:        uuid.NewString(),
		UserID:      userCtx.UserID,
		EventName:   req.EventName,
		Bookmaker1:  req.Bookmaker1,
		Bookmaker2:  req.Bookmaker2,
		Odds1:       req.Odds1,
		Odds2:       req.Odds2,
		TotalStake:  req.TotalStake,
		Stake1:      alloc.Stake1,
		Stake2:      alloc.Stake2,
		ProfitCents: alloc.ProfitCents,
		ROI:         alloc.ROI,
		Status:      models.SurebetStatusOpen,
		EventDate:   eventDate,
	}

	if err := repository.GetGlobalFactory().GetSurebetRepository().Create(bet); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "surebet_create_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(bet)
}

// HandleSurebetList returns the caller's surebets, newest first.
func HandleSurebetList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	page, pageSize := parsePagination(c)

	betRepo := repository.GetGlobalFactory().GetSurebetRepository()
	bets, err := betRepo.GetByUserID(userCtx.UserID, (page-1)*pageSize, pageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "surebet_list_failed"})
	}
	total, err := betRepo.CountByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "surebet_list_failed"})
	}

	return c.JSON(fiber.Map{
		"surebets":  bets,
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	})
}

// HandleSurebetGet returns one surebet by UUID, owner only.
func HandleSurebetGet(c *fiber.Ctx) error {
	bet, err := findOwnedSurebet(c)
	if err != nil {
		return err
	}
	return c.JSON(bet)
}

// HandleSurebetUpdate recomputes the split when odds or stake change and
// allows settling or voiding the bet.
func HandleSurebetUpdate(c *fiber.Ctx) error {
	bet, err := findOwnedSurebet(c)
	if err != nil {
		return err
	}

	var req struct {
		surebetRequest
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}

	if req.Odds1 > 0 || req.Odds2 > 0 || req.TotalStake > 0 {
		odds1, odds2, totalStake := bet.Odds1, bet.Odds2, bet.TotalStake
		if req.Odds1 > 0 {
			odds1 = req.Odds1
		}
		if req.Odds2 > 0 {
			odds2 = req.Odds2
		}
		if req.TotalStake > 0 {
			totalStake = req.TotalStake
		}
		alloc, allocErr := surebet.Allocate(odds1, odds2, totalStake)
		if allocErr != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": allocErr.Error()})
		}
		bet.Odds1 = odds1
		bet.Odds2 = odds2
		bet.TotalStake = totalStake
		bet.Stake1 = alloc.Stake1
		bet.Stake2 = alloc.Stake2
		bet.ProfitCents = alloc.ProfitCents
		bet.ROI = alloc.ROI
	}

	if req.EventName != "" {
		bet.EventName = req.EventName
	}
	if req.Bookmaker1 != "" {
		bet.Bookmaker1 = req.Bookmaker1
	}
	if req.Bookmaker2 != "" {
		bet.Bookmaker2 = req.Bookmaker2
	}
	if req.EventDate != "" {
		eventDate, parseErr := time.Parse(time.RFC3339, req.EventDate)
		if parseErr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_event_date"})
		}
		bet.EventDate = eventDate
	}
	if req.Status != "" {
		switch req.Status {
		case models.SurebetStatusOpen, models.SurebetStatusSettled, models.SurebetStatusVoid:
			bet.Status = req.Status
		default:
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid_status"})
		}
	}

	if err := repository.GetGlobalFactory().GetSurebetRepository().Update(bet); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "surebet_update_failed"})
	}

	return c.JSON(bet)
}

// HandleSurebetDelete removes one surebet, owner only.
func HandleSurebetDelete(c *fiber.Ctx) error {
	bet, err := findOwnedSurebet(c)
	if err != nil {
		return err
	}

	if err := repository.GetGlobalFactory().GetSurebetRepository().Delete(bet.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "surebet_delete_failed"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// parseSurebetRequest validates the body; failures come back as fiber errors
// rendered by the app error handler.
func parseSurebetRequest(c *fiber.Ctx) (*surebetRequest, time.Time, error) {
	var req surebetRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid_body")
	}
	if err := validate.Struct(req); err != nil {
		return nil, time.Time{}, fiber.NewError(fiber.StatusUnprocessableEntity, validationMessage(err))
	}
	eventDate, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		return nil, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid_event_date")
	}
	return &req, eventDate, nil
}

func findOwnedSurebet(c *fiber.Ctx) (*models.Surebet, error) {
	userCtx := usercontext.GetUserContext(c)

	bet, err := repository.GetGlobalFactory().GetSurebetRepository().GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "surebet_not_found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "surebet_lookup_failed")
	}
	if bet.UserID != userCtx.UserID {
		return nil, fiber.NewError(fiber.StatusNotFound, "surebet_not_found")
	}
	return bet, nil
}
