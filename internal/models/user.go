package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	ClerkUserID string    `gorm:"uniqueIndex;not null" json:"clerk_user_id"` // subject issued by the auth provider
	Email       string    `gorm:"index" json:"email"`
	Name        string    `json:"name"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Accounts     []Account     `json:"-" gorm:"foreignKey:UserID"`
	Transactions []Transaction `json:"-" gorm:"foreignKey:UserID"`
	Budget       *Budget       `json:"-" gorm:"foreignKey:UserID"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
