package main

import (
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourusername/excel-translator/internal/config"
	"github.com/yourusername/excel-translator/internal/jobs"
	"github.com/yourusername/excel-translator/internal/session"
	"github.com/yourusername/excel-translator/internal/translate"
)

func setupJobs(cfg *config.Config, service *translate.Service, registry *session.Registry, logger *zap.Logger) (*jobs.Manager, error) {
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(opt)
	ttlMinutes := cfg.JobExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 10
	}
	store := jobs.NewStore(redisClient, time.Duration(ttlMinutes)*time.Minute)
	manager, err := jobs.NewManager(cfg, service, store, registry, logger)
	if err != nil {
		return nil, err
	}
	return manager, nil
}
