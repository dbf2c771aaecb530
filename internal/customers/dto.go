package customers

type CreateCustomerRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email,max=200"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

type UpdateCustomerRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email,max=200"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

type ListCustomersRequest struct {
	Search       string `json:"search,omitempty"`
	ActiveOnly   bool   `json:"active_only,omitempty"`
	Limit        int    `json:"limit" validate:"gte=0,lte=1000"`
	Offset       int    `json:"offset" validate:"gte=0"`
}

// MatchHint carries the fields the POS screen knows about a walk-in
// customer when trying to link a sale to an existing record.
type MatchHint struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}
