package campaign

import (
	"errors"
	"fmt"
)

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyRecipients   = errors.New("campaign has no recipients")
	ErrTemplateNotFound  = errors.New("template not found or inactive")
	ErrIdentityNotFound  = errors.New("verified sender identity not found")
)

// InvalidRecipient describes one rejected address in a create request.
type InvalidRecipient struct {
	Index int    `json:"index"`
	Email string `json:"email"`
	Error string `json:"error"`
}

// ValidationError rejects a create request whose recipient list contains
// malformed addresses. The whole request is refused; nothing is persisted.
type ValidationError struct {
	Invalid []InvalidRecipient
	Total   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recipients: %d of %d addresses rejected", len(e.Invalid), e.Total)
}

// QuotaError rejects a create request the tenant's monthly allowance
// cannot absorb. Carries the gate's numbers for the API response.
type QuotaError struct {
	Reason    string
	Remaining int
	Limit     int
	Used      int
	Requested int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: %s (requested %d, remaining %d of %d)",
		e.Reason, e.Requested, e.Remaining, e.Limit)
}
