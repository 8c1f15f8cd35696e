package config

import (
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
)

type Config interface {
	EnvConfig
	OAuthConfig
	StoreConfig
	CorsConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetListenAddr() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	*EnvVars
	Cors
}

// New decodes the SIGNIN_* environment variables into a Config.
func New() (Config, error) {
	e := &EnvVars{}
	if err := envdecode.Decode(e); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("[config New] decode environment: %w", err)
	}
	return mainConfig{EnvVars: e, Cors: Cors{origins: parseOrigins(e.AllowedOrigins)}}, nil
}
