package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/zmurilzx/treon/app/models"
	"github.com/zmurilzx/treon/app/repository"
	"github.com/zmurilzx/treon/internal/pkg/storage"
	"github.com/zmurilzx/treon/internal/pkg/usercontext"
)

const maxAvatarBytes = 5 * 1024 * 1024

type updateProfileRequest struct {
	Name string `json:"name" validate:"required,min=3,max=150"`
}

// HandleProfileUpdate changes the display name.
func HandleProfileUpdate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": validationMessage(err)})
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_lookup_failed"})
	}

	user.Name = req.Name
	if err := userRepo.Update(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "profile_update_failed"})
	}

	return c.JSON(user)
}

// HandleAvatarUpload stores a new profile photo and records its URL.
func HandleAvatarUpload(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_file"})
	}
	if fileHeader.Size > maxAvatarBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "file_too_large"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable_file"})
	}
	defer file.Close()

	storageClient, err := storage.NewClientFromEnv()
	if err != nil {
		log.Errorf("[User] storage unavailable: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "storage_unavailable"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url, err := storageClient.UploadAvatar(ctx, userCtx.UserID, file)
	if err != nil {
		log.Errorf("[User] avatar upload failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "avatar_upload_failed"})
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_lookup_failed"})
	}
	user.AvatarURL = url
	if err := userRepo.Update(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "profile_update_failed"})
	}

	return c.JSON(fiber.Map{"avatar_url": url})
}

// HandleAdminUserList lists accounts for operators.
func HandleAdminUserList(c *fiber.Ctx) error {
	page, pageSize := parsePagination(c)

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	users, err := userRepo.List((page-1)*pageSize, pageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_list_failed"})
	}
	total, err := userRepo.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_list_failed"})
	}

	return c.JSON(fiber.Map{
		"users":     users,
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	})
}

// HandleAdminUserDisable flips an account to disabled.
func HandleAdminUserDisable(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_id"})
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByID(uint(id))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user_not_found"})
	}

	user.Status = models.STATUS_DISABLED
	if err := userRepo.Update(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_update_failed"})
	}

	return c.JSON(user)
}
