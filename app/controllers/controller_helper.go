package controllers

import (
	"encoding/json"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/zmurilzx/treon/internal/pkg/abacatepay"
)

var validate = validator.New()

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// parsePagination reads ?page and ?page_size with sane bounds.
func parsePagination(c *fiber.Ctx) (page int, pageSize int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.Query("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func metadataToJSON(meta abacatepay.EventMetadata) (string, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// validationMessage flattens the first validator error into a short field
// message for the client.
func validationMessage(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return errs[0].Field() + ": " + errs[0].Tag()
	}
	return "validation failed"
}
