package domain

import "time"

// User Model
type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`          // Primary key
	Email     string    `gorm:"type:varchar(255);unique;not null" json:"email"` // Unique email
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`         // Display name
	CreatedAt time.Time `json:"createdAt"`
}
