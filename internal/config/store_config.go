package config

import "strings"

// StoreKind selects the credential.Repo backend.
type StoreKind string

const (
	StoreFile   StoreKind = "file"
	StoreRedis  StoreKind = "redis"
	StoreMemory StoreKind = "memory"
)

type StoreConfig interface {
	GetStoreKind() StoreKind
	GetDataFolder() string
	GetRedisAddr() string
	GetRedisKeyPrefix() string
}

var _ StoreConfig = (*EnvVars)(nil)

func (e *EnvVars) GetStoreKind() StoreKind {
	switch StoreKind(strings.ToLower(strings.TrimSpace(e.StoreKind))) {
	case StoreRedis:
		return StoreRedis
	case StoreMemory:
		return StoreMemory
	default:
		return StoreFile
	}
}

func (e *EnvVars) GetRedisAddr() string {
	return e.RedisAddr
}

func (e *EnvVars) GetRedisKeyPrefix() string {
	return e.RedisKeyPrefix
}
