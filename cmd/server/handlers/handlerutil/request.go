package handlerutil

import (
	"strconv"

	"fido/cmd/server/handlers/httperr"
	"fido/internal/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ParseAndValidateBody parses request body and validates it
func ParseAndValidateBody(c *fiber.Ctx, req any, validator *validator.Validate, handlerName string) error {
	if err := c.BodyParser(req); err != nil {
		logger.L().Warn("failed to parse request body", "handler", handlerName, "path", c.Path(), "error", err)
		return httperr.Fail(httperr.ErrBadRequest)
	}

	if err := validator.Struct(req); err != nil {
		logger.L().Warn("request validation failed", "handler", handlerName, "path", c.Path(), "error", err)
		return httperr.InvalidInput(err)
	}

	return nil
}

// ExtractNoteID extracts and validates note ID from URL parameter. Stored
// ids are never negative.
func ExtractNoteID(c *fiber.Ctx, handlerName string) (int64, error) {
	noteIDStr := c.Params("id")
	noteID, err := strconv.ParseInt(noteIDStr, 10, 64)
	if err != nil || noteID < 0 {
		logger.L().Warn("invalid note ID parameter", "handler", handlerName, "noteIDStr", noteIDStr, "error", err)
		return 0, httperr.Fail(httperr.ErrInvalidNoteID)
	}
	return noteID, nil
}

// HandleServiceError handles common service error responses
func HandleServiceError(err error, handlerName string, noteID *int64) error {
	logFields := []any{"handler", handlerName, "error", err}
	if noteID != nil {
		logFields = append(logFields, "noteID", *noteID)
	}

	if e, ok := httperr.FromService(err); ok {
		if e.Status < 500 {
			logger.L().Info("request rejected", logFields...)
		} else {
			logger.L().Warn("dependency unavailable", logFields...)
		}
		return httperr.Fail(e)
	}

	logger.L().Error("service operation failed", logFields...)
	return httperr.Fail(httperr.E{
		Status:  500,
		Message: err.Error(),
	})
}
