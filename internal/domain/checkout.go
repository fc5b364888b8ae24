package domain

import "time"

// CheckoutSession is the time-boxed server-side record of a checkout.
type CheckoutSession struct {
	ID        string    `json:"id"`
	Status    string    `json:"status,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CheckoutState is the draft of an in-progress checkout kept in client storage.
// Timestamp is the epoch milliseconds of the last write.
type CheckoutState struct {
	SessionID              string  `json:"sessionId"`
	CurrentStep            int     `json:"currentStep"`
	ShippingAddressID      *string `json:"shippingAddressId,omitempty"`
	BillingAddressID       *string `json:"billingAddressId,omitempty"`
	SelectedShippingOption *string `json:"selectedShippingOption,omitempty"`
	PaymentMethod          *string `json:"paymentMethod,omitempty"`
	CustomerPhone          *string `json:"customerPhone,omitempty"`
	Notes                  *string `json:"notes,omitempty"`
	SpecialInstructions    *string `json:"specialInstructions,omitempty"`
	Timestamp              int64   `json:"timestamp"`
}

// CheckoutFormData is the address/shipping/payment subset of CheckoutState.
type CheckoutFormData struct {
	ShippingAddressID      *string `json:"shippingAddressId,omitempty"`
	BillingAddressID       *string `json:"billingAddressId,omitempty"`
	SelectedShippingOption *string `json:"selectedShippingOption,omitempty"`
	PaymentMethod          *string `json:"paymentMethod,omitempty"`
	CustomerPhone          *string `json:"customerPhone,omitempty"`
	Notes                  *string `json:"notes,omitempty"`
	SpecialInstructions    *string `json:"specialInstructions,omitempty"`
}

// CheckoutPatch carries the fields to merge onto a stored CheckoutState.
// Nil fields leave the stored value untouched.
type CheckoutPatch struct {
	CurrentStep *int `json:"currentStep,omitempty" binding:"omitempty,min=1"`
	CheckoutFormData
}

// Apply merges p onto s.
func (p CheckoutPatch) Apply(s *CheckoutState) {
	if p.CurrentStep != nil {
		s.CurrentStep = *p.CurrentStep
	}
	set := func(dst **string, v *string) {
		if v != nil {
			val := *v
			*dst = &val
		}
	}
	set(&s.ShippingAddressID, p.ShippingAddressID)
	set(&s.BillingAddressID, p.BillingAddressID)
	set(&s.SelectedShippingOption, p.SelectedShippingOption)
	set(&s.PaymentMethod, p.PaymentMethod)
	set(&s.CustomerPhone, p.CustomerPhone)
	set(&s.Notes, p.Notes)
	set(&s.SpecialInstructions, p.SpecialInstructions)
}

// FormData extracts the form subset of s.
func (s CheckoutState) FormData() CheckoutFormData {
	return CheckoutFormData{
		ShippingAddressID:      s.ShippingAddressID,
		BillingAddressID:       s.BillingAddressID,
		SelectedShippingOption: s.SelectedShippingOption,
		PaymentMethod:          s.PaymentMethod,
		CustomerPhone:          s.CustomerPhone,
		Notes:                  s.Notes,
		SpecialInstructions:    s.SpecialInstructions,
	}
}
