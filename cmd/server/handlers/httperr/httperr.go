package httperr

import (
	"errors"

	"fido/internal/services/notelist"
	"fido/internal/services/notes"
	"fido/internal/services/prefs"

	"github.com/gofiber/fiber/v2"
)

// E represents an HTTP error with status code and message
type E struct {
	Status  int    `json:"-" example:"400"`
	Message string `json:"error" example:"Bad Request"`
}

// Error implements the error interface
func (e E) Error() string {
	return e.Message
}

// JSON returns the error as JSON response
func (e E) JSON(c *fiber.Ctx) error {
	return c.Status(e.Status).JSON(e)
}

// Fail returns the error for Fiber's global error handler to process
func Fail(err E) error {
	return err
}

// InvalidInput wraps a validation error and returns the standard response.
func InvalidInput(err error) error {
	return Fail(E{
		Status:  400,
		Message: "Invalid input: " + err.Error(),
	})
}

// InternalError returns an internal server error with the given message
func InternalError(message string) E {
	return E{Status: 500, Message: message}
}

// Pre-defined HTTP errors
var (
	ErrBadRequest         = E{Status: 400, Message: "Bad Request"}
	ErrInvalidNoteID      = E{Status: 400, Message: "Invalid note ID"}
	ErrNoteNotFound       = E{Status: 404, Message: notes.ErrNoteNotFound.Error()}
	ErrTooManyRequests    = E{Status: 429, Message: "Too Many Requests"}
	ErrServiceUnavailable = E{Status: 503, Message: "Service Unavailable"}
	ErrInternal           = InternalError("Internal Server Error")
)

// FromService maps a service error onto the HTTP taxonomy. The second result
// is false for errors without a dedicated status.
func FromService(err error) (E, bool) {
	switch {
	case errors.Is(err, notes.ErrNoteNotFound):
		return ErrNoteNotFound, true
	case errors.Is(err, notes.ErrValidation),
		errors.Is(err, notes.ErrInvalidOrder),
		errors.Is(err, notelist.ErrUnknownEvent),
		errors.Is(err, notelist.ErrEventNote):
		return E{Status: 400, Message: err.Error()}, true
	case errors.Is(err, notes.ErrStoreUnavailable),
		errors.Is(err, prefs.ErrPrefsUnavailable),
		errors.Is(err, notelist.ErrEngineStopped):
		return ErrServiceUnavailable, true
	}
	return E{}, false
}

// Handler is the global error handler for Fiber
func Handler(c *fiber.Ctx, err error) error {
	// Check if it's our custom error type
	var e E
	if errors.As(err, &e) {
		return e.JSON(c)
	}

	var fiberError *fiber.Error
	if errors.As(err, &fiberError) {
		return c.Status(fiberError.Code).JSON(E{
			Status:  fiberError.Code,
			Message: fiberError.Message,
		})
	}

	if mapped, ok := FromService(err); ok {
		return mapped.JSON(c)
	}

	return ErrInternal.JSON(c)
}
