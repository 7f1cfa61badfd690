package app

import (
	"strings"

	"github.com/penflowhq/penflow/internal/auth"
	"github.com/penflowhq/penflow/internal/cache"
)

// JWTServiceConfig converts the configured JWT settings into the auth package's form.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         strings.TrimSpace(c.JWT.Secret),
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		AccessTokenTTL: ttl,
	}
}

// RedisPresenceClientConfig converts the presence settings into the cache package's form.
func (c PresenceConfig) RedisPresenceClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: c.Redis.Username,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TTL:      c.Redis.TTL,
	}
}
