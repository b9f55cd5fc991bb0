package app

import (
	"github.com/intervia/intervia/internal/auth"
	"github.com/intervia/intervia/internal/services"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	accessTTL := c.JWT.AccessTTL
	if accessTTL <= 0 {
		accessTTL = auth.DefaultAccessTokenTTL
	}

	refreshTTL := c.JWT.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = auth.DefaultRefreshTokenTTL
	}

	return auth.JWTConfig{
		Secret:          c.JWT.Secret,
		Issuer:          c.JWT.Issuer,
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}
}

// AuthServiceOptions converts AuthConfig into AuthService options.
func (c AuthConfig) AuthServiceOptions() []services.AuthOption {
	var opts []services.AuthOption
	if c.OTP.Expiry > 0 {
		opts = append(opts, services.WithOTPExpiry(c.OTP.Expiry))
	}
	if c.OTP.Length > 0 {
		opts = append(opts, services.WithOTPLength(c.OTP.Length))
	}
	return opts
}
