package models

import "time"

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestCompleted RequestStatus = "completed"
	RequestCancelled RequestStatus = "cancelled"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestCompleted, RequestCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave this status.
func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestCancelled
}

// Location is the point where the equipment is needed. It is stored only.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Request struct {
	ID            int64         `json:"id"`
	CustomerID    int64         `json:"customerId"`
	EquipmentID   int64         `json:"equipmentId"`
	Location      Location      `json:"location"`
	CustomerPhone string        `json:"customerPhone"`
	Notes         string        `json:"notes,omitempty"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`

	Customer  *UserSummary      `json:"customer,omitempty"`
	Equipment *EquipmentSummary `json:"equipment,omitempty"`
}
