package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER     = "user"
	ROLE_PROVIDER = "provider"
	ROLE_ADMIN    = "admin"

	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// User is a marketplace account. Providers are the only role that carries a
// subscription; identity and login are handled by the auth service upstream,
// this backend only resolves accounts via their API key.
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email            string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Role             string         `gorm:"type:varchar(50);default:'user';index" json:"role" validate:"oneof=user provider admin"`
	Status           string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	CompanyName      string         `gorm:"type:varchar(200);default:null" json:"company_name"`
	LegalStatusID    *uint          `gorm:"default:null" json:"legal_status_id,omitempty"`
	APIKeyHash       string         `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt  *time.Time     `json:"api_key_created_at"`
	APIKeyLastUsedAt *time.Time     `json:"-"`
	APIKeyRevokedAt  *time.Time     `json:"-"`
	LastLoginAt      *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// IsProviderAccount reports whether the account may hold a subscription.
// Regular users qualify once they are registered as a company (legal status).
func (u *User) IsProviderAccount() bool {
	if u.Role == ROLE_PROVIDER || u.Role == ROLE_ADMIN {
		return true
	}
	return u.Role == ROLE_USER && u.LegalStatusID != nil
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyDisplayPrefix = "jfx_"

// IssueAPIKey generates a new API key, stores its hash on the struct, and
// returns the raw secret. Callers must persist the struct afterwards.
func (u *User) IssueAPIKey() (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	key := apiKeyDisplayPrefix + apiKeyEncoding.EncodeToString(raw)

	now := time.Now()
	u.APIKeyHash = HashAPIKey(key)
	u.APIKeyPrefix = key[:10]
	u.APIKeyCreatedAt = &now
	u.APIKeyLastUsedAt = nil
	u.APIKeyRevokedAt = nil

	return key, nil
}

// HashAPIKey returns the hex encoded SHA-256 hash of an API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
