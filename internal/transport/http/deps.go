package http

import (
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/cache"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/bandhan-app/bandhan-api/internal/infrastructure/jwt"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/smtp"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/sns"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/verify"
)

// Deps holds all infrastructure dependencies for the router.
//
// JWTProvider and SMSSender may be nil when their credentials are absent:
// token minting then fails hard at the service layer and welcome SMS is
// skipped. Everything else is required.
type Deps struct {
	AccountRepo      *dynamo.AccountRepo
	NotificationRepo *dynamo.NotificationRepo
	Cooldowns        *cache.CooldownStore
	ResendCounter    *cache.ResendCounterStore
	OTPStore         *cache.OTPStore
	VerifyClient     *verify.Client
	Mailer           smtp.Mailer
	SMSSender        sns.SMSSender
	JWTProvider      *jwtinfra.Provider
}
