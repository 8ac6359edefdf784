package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/omtenta/internal/models"
)

const (
	timeFormat   = "2006-01-02 15:04:05"
	authKeyTpl   = "auth:%s" // auth:${identity}
	lookupKey    = "lookup:telegram"
	tokenPrefix  = "sk-omtnt-"
	tokenRandLen = 12
)

type TokenManager struct {
	redis *redis.Client
}

func NewTokenManager(redis *redis.Client) *TokenManager {
	return &TokenManager{redis: redis}
}

func generateToken() (string, error) {
	randomBytes := make([]byte, tokenRandLen)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return tokenPrefix + hex.EncodeToString(randomBytes), nil
}

// FetchOrCreateToken returns the identity's API token, minting one on
// first request. Every call bumps the usage counters so /token in the bot
// can show them. The bool reports whether the token is freshly minted.
func (tm *TokenManager) FetchOrCreateToken(ctx context.Context, identity string) (*models.TokenInfo, bool, error) {
	key := fmt.Sprintf(authKeyTpl, identity)

	token, err := tm.redis.HGet(ctx, key, "token").Result()
	if err != nil && err != redis.Nil {
		return nil, false, fmt.Errorf("failed to check token: %w", err)
	}

	now := time.Now().UTC()
	isNewToken := false

	if err == redis.Nil {
		token, err = generateToken()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate token: %w", err)
		}

		pipe := tm.redis.Pipeline()
		pipe.HSet(ctx, key, map[string]interface{}{
			"token":                 token,
			"request_count":         1,
			"last_request_dttm_utc": now.Format(timeFormat),
			"created_dttm_utc":      now.Format(timeFormat),
		})

		if _, err := pipe.Exec(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to create token: %w", err)
		}

		isNewToken = true
	} else {
		pipe := tm.redis.Pipeline()
		pipe.HIncrBy(ctx, key, "request_count", 1)
		pipe.HSet(ctx, key, "last_request_dttm_utc", now.Format(timeFormat))

		if _, err := pipe.Exec(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to update token stats: %w", err)
		}
	}

	values, err := tm.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get token info: %w", err)
	}

	lastReqTime, _ := time.Parse(timeFormat, values["last_request_dttm_utc"])
	createdTime, _ := time.Parse(timeFormat, values["created_dttm_utc"])
	reqCount, _ := strconv.Atoi(values["request_count"])

	return &models.TokenInfo{
		Token:           values["token"],
		Identity:        identity,
		RequestCount:    reqCount,
		LastRequestTime: lastReqTime,
		CreatedTime:     createdTime,
	}, isNewToken, nil
}

// SaveTelegramMapping binds a telegram username to a workflow identity in
// the shared lookup hash. The bot uses it to resolve who /token is for.
func (tm *TokenManager) SaveTelegramMapping(ctx context.Context, tgUsername, identity string) error {
	return tm.redis.HSet(ctx, lookupKey, tgUsername, identity).Err()
}

func (tm *TokenManager) FetchIdentityByTelegram(ctx context.Context, tgUsername string) (string, error) {
	identity, err := tm.redis.HGet(ctx, lookupKey, tgUsername).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("no identity mapping found for telegram user %s", tgUsername)
	}
	return identity, err
}

func (tm *TokenManager) FetchTelegramMappings(ctx context.Context) (map[string]string, error) {
	return tm.redis.HGetAll(ctx, lookupKey).Result()
}

func (tm *TokenManager) Close() error {
	if tm.redis != nil {
		return tm.redis.Close()
	}
	return nil
}
