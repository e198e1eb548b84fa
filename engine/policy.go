/*
policy.go - Activation policy

PURPOSE:
  Maps a payment method to the initial lifecycle state of a new
  enrollment and says whether activation side effects (deadline,
  capacity slot, user profile update) happen immediately or wait for an
  approval trigger.

MAPPING:
  card           -> active           (immediate side effects)
  admin_grant    -> active           (immediate side effects)
  bank_transfer  -> pending          (side effects on admin approval)
  gateway        -> pending_payment  (side effects on gateway callback)

The switch is exhaustive over the closed enum: an unrecognized tag is an
error, never a silent fallthrough into some default state.

SEE ALSO:
  - types.go:   PaymentMethod enum
  - service.go: Applies the decision
*/
package engine

// =============================================================================
// ACTIVATION DECISION
// =============================================================================

// ActivationDecision is the outcome of mapping a payment method.
type ActivationDecision struct {
	// InitialStatus is the state the enrollment is created in.
	InitialStatus Status

	// Immediate is true when activation side effects run atomically
	// with the creation itself.
	Immediate bool

	// RequiresReceipt is true when a proof-of-payment artifact must
	// accompany the request; creation fails without one.
	RequiresReceipt bool
}

// DecideActivation maps a payment method to its activation behavior.
func DecideActivation(m PaymentMethod) (ActivationDecision, error) {
	switch m {
	case PaymentCard, PaymentAdminGrant:
		return ActivationDecision{InitialStatus: StatusActive, Immediate: true}, nil
	case PaymentBankTransfer:
		return ActivationDecision{InitialStatus: StatusPending, RequiresReceipt: true}, nil
	case PaymentGateway:
		return ActivationDecision{InitialStatus: StatusPendingPayment}, nil
	default:
		return ActivationDecision{}, &UnknownPaymentMethodError{Method: string(m)}
	}
}
