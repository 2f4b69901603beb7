package notes

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// TitleTag is the validator tag enforcing ValidateNoteTitle.
const TitleTag = "notetitle"

// ValidateNoteTitle reports whether title is acceptable, i.e. not blank.
func ValidateNoteTitle(title string) bool {
	return strings.TrimSpace(title) != ""
}

func noteTitleRule(fl validator.FieldLevel) bool {
	return ValidateNoteTitle(fl.Field().String())
}

// RegisterTitleValidator registers the "notetitle" validation tag with the validator
// Safely handles duplicate registration by checking if already registered
func RegisterTitleValidator(v *validator.Validate) error {
	err := v.RegisterValidation(TitleTag, noteTitleRule)
	if err != nil && err.Error() == "validator: tag '"+TitleTag+"' already exists" {
		return nil
	}
	return err
}
