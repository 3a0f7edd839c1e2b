package database

import (
	"github.com/redis/go-redis/v9"

	"github.com/givestation/youbuidl-sync/internal/config"
)

func NewRedis(conf config.Server) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: conf.RedisAddr,
		DB:   conf.RedisDB,
	})
}
