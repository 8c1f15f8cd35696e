package config

import (
	"os"
	"strings"
	"time"
)

// EnvVars is populated by envdecode; the defaults below apply when a variable is unset.
type EnvVars struct {
	AppName    string `env:"SIGNIN_APP_NAME,default=Self Hosted Sign In"`
	Env        string `env:"SIGNIN_ENV,default=DEV"`
	LogLevel   string `env:"SIGNIN_LOG_LEVEL,default=info"`
	ListenAddr string `env:"SIGNIN_LISTEN_ADDR,default=127.0.0.1:8181"`

	Issuer        string        `env:"SIGNIN_ISSUER"`
	ClientID      string        `env:"SIGNIN_CLIENT_ID"`
	ClientSecret  string        `env:"SIGNIN_CLIENT_SECRET"`
	Scopes        string        `env:"SIGNIN_SCOPES,default=openid profile email offline_access"`
	TokenURL      string        `env:"SIGNIN_TOKEN_URL"`
	RevocationURL string        `env:"SIGNIN_REVOCATION_URL"`
	UserInfoURL   string        `env:"SIGNIN_USERINFO_URL"`
	Timeout       time.Duration `env:"SIGNIN_TIMEOUT,default=30s"`

	StoreKind      string `env:"SIGNIN_STORE,default=file"`
	DataFolder     string `env:"SIGNIN_DATA_FOLDER"`
	RedisAddr      string `env:"SIGNIN_REDIS_ADDR,default=127.0.0.1:6379"`
	RedisKeyPrefix string `env:"SIGNIN_REDIS_PREFIX,default=signin:credentials:"`

	AllowedOrigins string `env:"SIGNIN_ALLOWED_ORIGINS"`
}

var _ EnvConfig = (*EnvVars)(nil)

func (e *EnvVars) GetAppName() string {
	return e.AppName
}

func (e *EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}

func (e *EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e *EnvVars) GetListenAddr() string {
	return e.ListenAddr
}

// GetDataFolder defaults to ~/.signin, falling back to ./data when there is no home directory.
func (e *EnvVars) GetDataFolder() string {
	if e.DataFolder != "" {
		return e.DataFolder
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	return home + string(os.PathSeparator) + ".signin"
}
