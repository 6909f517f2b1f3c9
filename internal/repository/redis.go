package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GoPolymarket/guardgate/internal/config"
	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrReceiptNotFound = errors.New("receipt not found")

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

// RedisReceiptMirror keeps the newest receipts of each offer in a capped list
// so other processes can read the trail without the in-memory store.
type RedisReceiptMirror struct {
	client  redis.Cmdable
	prefix  string
	listMax int
}

func NewRedisReceiptMirror(client redis.Cmdable, listMax int) *RedisReceiptMirror {
	if listMax <= 0 {
		listMax = 1000
	}
	return &RedisReceiptMirror{
		client:  client,
		prefix:  "receipts:",
		listMax: listMax,
	}
}

func (r *RedisReceiptMirror) Name() string { return "redis" }

func (r *RedisReceiptMirror) key(offerID uuid.UUID) string {
	return r.prefix + offerID.String()
}

func (r *RedisReceiptMirror) Insert(ctx context.Context, receipt *model.FillReceipt) error {
	if receipt == nil {
		return nil
	}
	payload, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	key := r.key(receipt.Offer.ID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

// List returns up to limit receipts for the offer, oldest first.
func (r *RedisReceiptMirror) List(ctx context.Context, offerID uuid.UUID, limit int) ([]*model.FillReceipt, error) {
	if limit <= 0 || limit > r.listMax {
		limit = r.listMax
	}
	items, err := r.client.LRange(ctx, r.key(offerID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.FillReceipt, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var receipt model.FillReceipt
		if err := json.Unmarshal([]byte(items[i]), &receipt); err != nil {
			continue
		}
		out = append(out, &receipt)
	}
	return out, nil
}
