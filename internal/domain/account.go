package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Account struct {
	AccountID          string     `json:"id" dynamodbav:"account_id"`
	CustomID           string     `json:"custom_id" dynamodbav:"custom_id"`
	DisplayName        string     `json:"display_name" dynamodbav:"display_name"`
	Email              string     `json:"email" dynamodbav:"email"`
	Phone              string     `json:"phone" dynamodbav:"phone"`
	PasswordHash       string     `json:"-" dynamodbav:"password_hash"`
	Role               string     `json:"role" dynamodbav:"role"`
	EmailVerified      bool       `json:"email_verified" dynamodbav:"email_verified"`
	PhoneVerified      bool       `json:"phone_verified" dynamodbav:"phone_verified"`
	WelcomeSent        bool       `json:"-" dynamodbav:"welcome_sent"`
	Active             bool       `json:"active" dynamodbav:"active"`
	Deleted            bool       `json:"deleted" dynamodbav:"deleted"`
	ProfileVisible     bool       `json:"profile_visible" dynamodbav:"profile_visible"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty" dynamodbav:"deactivated_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	DeactivationReason *string    `json:"-" dynamodbav:"deactivation_reason"`
	DeletionReason     *string    `json:"-" dynamodbav:"deletion_reason"`
	Blocked            []string   `json:"-" dynamodbav:"blocked,stringset,omitempty"`
	CreatedAt          time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt          time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type SignupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,e164"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
