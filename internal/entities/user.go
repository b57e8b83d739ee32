package entities

import "time"

// User is a chat account with its purchased generation balance.
type User struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"` // informational only
	CreatedOn   time.Time `json:"created_on"`
	PaidBalance int64     `json:"paid_balance"` // purchased generations remaining
}
