package database

import (
	"context"

	"dealer_crm_go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// RDB 全局 Redis 客户端，目前用于登出令牌黑名单。
var RDB *redis.Client

func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
