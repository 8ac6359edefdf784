package models

import (
	"time"
)

// TokenInfo describes an identity's API token as stored in redis,
// including the usage counters the bot surfaces on /token.
type TokenInfo struct {
	Token           string    `json:"token"`
	Identity        string    `json:"identity"`
	RequestCount    int       `json:"request_count"`
	LastRequestTime time.Time `json:"last_request_dttm_utc"`
	CreatedTime     time.Time `json:"created_dttm_utc"`
}
