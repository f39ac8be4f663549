package store

import (
	"fmt"

	"github.com/ashureev/askd/internal/config"
)

// Open builds the backend selected by cfg.Backend.
func Open(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileBackend(map[string]string{
			DocChatHistory: cfg.ChatHistoryFile,
			DocUsers:       cfg.UsersFile,
		})
	case config.BackendSQLite:
		return NewSQLite(cfg.DBPath)
	case config.BackendRedis:
		return NewRedis(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
