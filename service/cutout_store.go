package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TIANLI0/LiftKit/config"
	"github.com/TIANLI0/LiftKit/model"
	"github.com/TIANLI0/LiftKit/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cutoutKeyPrefix = "cutout:"

// CutoutStore 在 Redis 中保存抠图记录，供 HTTP 层按 ID 查询
type CutoutStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCutoutStore(cfg *config.RedisConfig) *CutoutStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &CutoutStore{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *CutoutStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetCutout 查询抠图记录，不存在时返回 nil, nil
func (s *CutoutStore) GetCutout(ctx context.Context, id string) (*model.CutoutRecord, error) {
	data, err := s.client.Get(ctx, cutoutKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var record model.CutoutRecord
	if err := json.Unmarshal(data, &record); err != nil {
		utils.Logger.Error("failed to unmarshal cutout record",
			zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return &record, nil
}

// SetCutout 保存抠图记录，过期时间取 redis.ttl
func (s *CutoutStore) SetCutout(ctx context.Context, record *model.CutoutRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, cutoutKeyPrefix+record.ID, data, s.ttl).Err()
}

// DeleteCutout 删除抠图记录
func (s *CutoutStore) DeleteCutout(ctx context.Context, id string) error {
	return s.client.Del(ctx, cutoutKeyPrefix+id).Err()
}

func (s *CutoutStore) Close() error {
	return s.client.Close()
}
