// Package customers manages the pharmacies, hospitals and clinics that buy from the distributor.
package customers

import "time"

type Customer struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Sector    string    `json:"sector"`
	City      string    `json:"city"`
	Region    string    `json:"region"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
