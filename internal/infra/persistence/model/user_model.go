package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table. Email is nullable and unique; PostgreSQL
// allows any number of NULLs under a unique index.
type UserModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name          string    `gorm:"type:varchar(100);not null"`
	Email         *string   `gorm:"type:varchar(255);uniqueIndex:idx_users_email"`
	EmailVerified bool      `gorm:"not null;default:false"`
	PasswordHash  *string   `gorm:"type:varchar(255)"`
	ProfileImage  *string   `gorm:"type:text"`
	Role          string    `gorm:"type:varchar(20);not null;default:USER"`
	TokenVersion  int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"type:timestamptz;not null;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;not null;autoUpdateTime"`

	AuthProviders []AuthProviderModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
