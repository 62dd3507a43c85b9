package jobs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var payloadValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
})

// Validate checks that p belongs to a known job type and that its ids are
// present. Whitespace-only ids count as missing.
func Validate(p Payload) error {
	if p == nil || !p.JobType().IsValid() {
		return ErrInvalidJobType
	}

	err := payloadValidator().Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s is %s", ErrInvalidJobPayload, verrs[0].Field(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
}
