package controllers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/markbates/goth"
	gothfiber "github.com/shareed2k/goth_fiber"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/zmurilzx/treon/app/models"
	"github.com/zmurilzx/treon/app/repository"
)

// HandleOAuthLogin starts the OAuth flow for /auth/:provider.
func HandleOAuthLogin(c *fiber.Ctx) error {
	return gothfiber.BeginAuthHandler(c)
}

// HandleOAuthCallback finishes the OAuth flow, provisioning a local account
// on first login.
func HandleOAuthCallback(c *fiber.Ctx) error {
	gothUser, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warnf("[OAuth] callback failed for provider %s: %v", c.Params("provider"), err)
		fm := fiber.Map{"type": "error", "message": "Login com o provedor falhou"}
		return flash.WithError(c, fm).Redirect("/login")
	}

	user, err := findOrCreateOAuthUser(gothUser)
	if err != nil {
		log.Errorf("[OAuth] provisioning failed for %s/%s: %v", gothUser.Provider, gothUser.UserID, err)
		fm := fiber.Map{"type": "error", "message": "Não foi possível criar a conta"}
		return flash.WithError(c, fm).Redirect("/login")
	}
	if user.Status != models.STATUS_ACTIVE {
		fm := fiber.Map{"type": "error", "message": "Conta desativada"}
		return flash.WithError(c, fm).Redirect("/login")
	}

	now := time.Now()
	user.LastLoginAt = &now
	userRepo := repository.GetGlobalFactory().GetUserRepository()
	if err := userRepo.Update(user); err != nil {
		log.Warnf("[OAuth] failed to record login time for user %d: %v", user.ID, err)
	}

	if err := establishSession(c, user); err != nil {
		log.Errorf("[OAuth] session setup failed for user %d: %v", user.ID, err)
		fm := fiber.Map{"type": "error", "message": "Falha ao iniciar a sessão"}
		return flash.WithError(c, fm).Redirect("/login")
	}

	fm := fiber.Map{"type": "success", "message": "Login realizado com sucesso"}
	return flash.WithSuccess(c, fm).Redirect("/")
}

func findOrCreateOAuthUser(gothUser goth.User) (*models.User, error) {
	userRepo := repository.GetGlobalFactory().GetUserRepository()

	user, err := userRepo.GetByProvider(gothUser.Provider, gothUser.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Same email already registered: attach the provider identity.
	if gothUser.Email != "" {
		if existing, err := userRepo.GetByEmail(gothUser.Email); err == nil {
			existing.Provider = gothUser.Provider
			existing.ProviderID = gothUser.UserID
			if existing.AvatarURL == "" {
				existing.AvatarURL = gothUser.AvatarURL
			}
			if err := userRepo.Update(existing); err != nil {
				return nil, err
			}
			return existing, nil
		}
	}

	name := gothUser.Name
	if name == "" {
		name = gothUser.NickName
	}
	if len(name) < 3 {
		name = gothUser.Provider + "-" + gothUser.UserID
	}

	// OAuth accounts never log in by password but the column is required.
	pw, err := models.HashPassword(randomToken())
	if err != nil {
		return nil, err
	}

	user = &models.User{
		Name:       name,
		Email:      gothUser.Email,
		Password:   pw,
		Role:       models.ROLE_USER,
		Status:     models.STATUS_ACTIVE,
		AvatarURL:  gothUser.AvatarURL,
		Provider:   gothUser.Provider,
		ProviderID: gothUser.UserID,
	}
	if err := userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func randomToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
