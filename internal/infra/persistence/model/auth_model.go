package model

import (
	"time"

	"github.com/google/uuid"
)

// AuthProviderModel mirrors the 'auth_providers' table. The provider's subject
// identifier is the primary key, which serializes concurrent first logins.
type AuthProviderModel struct {
	ID        string    `gorm:"type:varchar(255);primaryKey"`
	Provider  string    `gorm:"type:varchar(20);not null"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_auth_providers_user_id"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;autoUpdateTime"`
}

// TableName explicitly sets the table name for GORM.
func (AuthProviderModel) TableName() string {
	return "auth_providers"
}
