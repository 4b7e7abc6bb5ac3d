package redis

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"techno-etl-service/internal/config"
)

var Redis_Client *redis.Client

// Connect opens the Redis client the session middleware validates
// bearer tokens against.
func Connect(cfg config.RedisConfig) {
	Redis_Client = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := Redis_Client.Ping(context.Background()).Err(); err != nil {
		log.Printf("Warning: error connecting to Redis: %s", err)
	} else {
		log.Println("Successfully connected to Redis")
	}
}

func Disconnect() {
	if Redis_Client != nil {
		if err := Redis_Client.Close(); err != nil {
			log.Printf("Warning: error closing Redis client: %s", err)
		}
	}
}
