package customers

type CreateCustomerRequest struct {
	Code   string `json:"code" validate:"omitempty,max=50"`
	Name   string `json:"name" validate:"required,max=200"`
	Sector string `json:"sector" validate:"omitempty,max=100"`
	City   string `json:"city" validate:"omitempty,max=100"`
	Region string `json:"region" validate:"omitempty,max=100"`
	Phone  string `json:"phone" validate:"omitempty,max=50"`
	Email  string `json:"email" validate:"omitempty,email"`
}

type ListCustomersRequest struct {
	Search string
	Sector string
	Limit  int `validate:"gte=0,lte=1000"`
	Offset int `validate:"gte=0"`
}

type ListCustomersResponse struct {
	Customers []Customer `json:"customers"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}
