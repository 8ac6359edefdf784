package bot

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/omtenta/internal/app"
)

// Bot is the approvers' front door to the resit workflow. Reads and
// approvals go through the HTTP API; tokens come straight from redis.
type Bot struct {
	config *Config
	api    *tgbotapi.BotAPI
	client *resty.Client
	tokens *app.TokenManager
	admins map[int64]string // telegram user id -> workflow identity
}

func New(config *Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	admins := make(map[int64]string)
	for rawID, identity := range config.Bot.Admins {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad telegram id %q in bot admins: %w", rawID, err)
		}
		admins[id] = identity
	}

	client := resty.New().SetBaseURL(config.API.URL)
	for _, header := range config.API.Headers {
		client.SetHeader(header.Name, header.Value)
	}

	b := &Bot{
		config: config,
		api:    api,
		client: client,
		admins: admins,
	}

	if config.Auth.Enabled {
		opt, err := redis.ParseURL(config.Auth.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		b.tokens = app.NewTokenManager(redis.NewClient(opt))
	}

	return b, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			go b.handleMessage(update.Message)

		case <-sigChan:
			logger.Info.Println("Shutting down bot...")
			return nil
		}
	}
}

func (b *Bot) Close() error {
	if b.tokens != nil {
		return b.tokens.Close()
	}
	return nil
}
