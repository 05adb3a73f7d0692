package discount

import (
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a discount does not exist.
	ErrNotFound = errors.New("discount not found")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid discount definition")
	// ErrIneligible is matched by every *IneligibleError.
	ErrIneligible = errors.New("discount not eligible")
	// ErrDuplicateBottleReturn is returned when an order already carries a
	// bottle return discount, whichever discount that was.
	ErrDuplicateBottleReturn = errors.New("order already has a bottle return discount")
	// ErrAlreadyApplied is returned when the same discount is applied to the
	// same order twice.
	ErrAlreadyApplied = errors.New("discount already applied to order")
	// ErrInvalidAmount is returned for negative or out of range order amounts.
	ErrInvalidAmount = errors.New("order amount must be non-negative with at most 15 integer and 6 fractional digits")
)

// ValidationError lists every problem found in a discount definition.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid discount definition: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IneligibleError carries the full list of rejection reasons.
type IneligibleError struct {
	DiscountID string
	Reasons    []string
}

func (e *IneligibleError) Error() string {
	return "discount " + e.DiscountID + " not eligible: " + strings.Join(e.Reasons, "; ")
}

func (e *IneligibleError) Is(target error) bool {
	return target == ErrIneligible
}
