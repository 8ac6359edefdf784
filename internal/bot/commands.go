package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/omtenta/internal/models"
)

const (
	studentHelp = `Доступные команды:
/token - Получить токен для доступа к API
/history <студент> - История попыток студента
/resits <студент> - Пересдачи студента
/resit <id> - Детали пересдачи
/help - Показать это сообщение`

	adminHelp = `Доступные команды:
/token - Получить токен для доступа к API
/history <студент> - История попыток студента
/resits <студент> - Пересдачи студента
/resit <id> - Детали пересдачи
/approve <id> - Одобрить пересдачу
/help - Показать это сообщение

Примеры:
/history anna.larsson
/resit 17
/approve 17`
)

type commandHandler func(*tgbotapi.Message) error

func (b *Bot) routeStudentCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start":   b.handleStart,
		"token":   b.handleToken,
		"help":    b.handleHelp,
		"history": b.handleHistory,
		"resits":  b.handleResits,
		"resit":   b.handleResitDetails,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"approve": b.handleApprove,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendHelp(msg.Chat.ID)
		return
	}

	cmd := msg.Command()

	if handler, ok := b.routeStudentCommands(cmd); ok {
		if err := handler(msg); err != nil {
			logger.Error.Printf("Command error: %v", err)
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Error: %v", err))
		}
		return
	}

	if _, ok := b.admins[msg.From.ID]; ok {
		if handler, ok := b.routeAdminCommands(cmd); ok {
			if err := handler(msg); err != nil {
				logger.Error.Printf("Command error: %v", err)
				b.sendMessage(msg.Chat.ID, fmt.Sprintf("Error: %v", err))
			}
		}
		return
	}

	b.sendHelp(msg.Chat.ID)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	var text string
	if _, ok := b.admins[msg.From.ID]; ok {
		text = adminHelp
	} else {
		text = studentHelp
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Используйте команды для взаимодействия с ботом. Отправьте /help для списка команд.")
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	text := "Привет! Я слежу за пересдачами.\n\n"
	if _, ok := b.admins[msg.From.ID]; ok {
		text += "Ты можешь одобрять пересдачи. Используй /help для списка команд."
	} else {
		text += "Используй /token чтобы получить токен."
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleToken(msg *tgbotapi.Message) error {
	if b.tokens == nil {
		return b.sendMessage(msg.Chat.ID, "Авторизация выключена, токен для API не нужен")
	}

	ctx := context.Background()

	identity, ok := b.admins[msg.From.ID]
	if !ok {
		var err error
		identity, err = b.tokens.FetchIdentityByTelegram(ctx, msg.From.UserName)
		if err != nil {
			return fmt.Errorf("не нашёл identity для @%s, попроси администратора добавить маппинг", msg.From.UserName)
		}
	}

	info, isNew, err := b.tokens.FetchOrCreateToken(ctx, identity)
	if err != nil {
		return fmt.Errorf("ошибка получения токена: %v", err)
	}

	status := "существующий"
	if isNew {
		status = "новый"
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf(
		"🔑 Твой %s токен для %s:\n\n%s\n\nЗапросов: %d\nСоздан: %s UTC",
		status,
		identity,
		info.Token,
		info.RequestCount,
		info.CreatedTime.Format("2006-01-02 15:04:05"),
	))
}

func (b *Bot) handleHistory(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return fmt.Errorf("укажи студента: /history anna.larsson")
	}
	student := args[0]

	var result struct {
		Rows []models.Attempt `json:"rows"`
	}
	resp, err := b.client.R().
		SetResult(&result).
		Get(fmt.Sprintf("/api/v1/students/%s/attempts", student))
	if err != nil {
		return fmt.Errorf("ошибка запроса к API: %v", err)
	}
	if resp.IsError() {
		return fmt.Errorf("API ответил %s: %s", resp.Status(), resp.String())
	}

	if len(result.Rows) == 0 {
		return b.sendMessage(msg.Chat.ID, "Попытки не найдены")
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("История попыток %s:\n\n", student))
	for i, attempt := range result.Rows {
		when := time.Unix(attempt.Timestamp, 0)
		text.WriteString(fmt.Sprintf("📝 #%d: тест %d, экзамен %d, итог %d\n📅 %s UTC\n\n",
			i,
			attempt.TestScore,
			attempt.ExamScore,
			attempt.FinalGrade,
			when.UTC().Format("2006-Jan-02 Mon 15:04"),
		))
	}

	return b.sendMessage(msg.Chat.ID, text.String())
}

func (b *Bot) handleResits(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return fmt.Errorf("укажи студента: /resits anna.larsson")
	}
	student := args[0]

	var result struct {
		ResitIDs      []int64 `json:"resit_ids"`
		LatestResitID int64   `json:"latest_resit_id"`
	}
	resp, err := b.client.R().
		SetResult(&result).
		Get(fmt.Sprintf("/api/v1/students/%s/resits", student))
	if err != nil {
		return fmt.Errorf("ошибка запроса к API: %v", err)
	}
	if resp.IsError() {
		return fmt.Errorf("API ответил %s: %s", resp.Status(), resp.String())
	}

	if len(result.ResitIDs) == 0 {
		return b.sendMessage(msg.Chat.ID, "Пересдачи не найдены")
	}

	ids := make([]string, 0, len(result.ResitIDs))
	for _, id := range result.ResitIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf(
		"Пересдачи %s: %s\nПоследняя: %d\n\nДетали: /resit %d",
		student,
		strings.Join(ids, ", "),
		result.LatestResitID,
		result.LatestResitID,
	))
}

type resitDetails struct {
	Resit models.ResitRequest `json:"resit"`
	State string              `json:"state"`
}

func (b *Bot) fetchResit(resitID int64) (*resitDetails, error) {
	var result resitDetails
	resp, err := b.client.R().
		SetResult(&result).
		Get(fmt.Sprintf("/api/v1/resits/%d", resitID))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к API: %v", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("API ответил %s: %s", resp.Status(), resp.String())
	}
	return &result, nil
}

func formatResit(details *resitDetails) string {
	var emoji string
	switch details.State {
	case "executed":
		emoji = "🎓"
	case "resolved":
		emoji = "✅"
	default:
		emoji = "⏳"
	}

	text := fmt.Sprintf("%s Пересдача #%d (%s)\nСтудент: %s\nПричина: %s\nГолосов: %d",
		emoji,
		details.Resit.ID,
		details.State,
		details.Resit.Student,
		details.Resit.Reason,
		details.Resit.Approvals,
	)
	if len(details.Resit.Approvers) > 0 {
		text += "\nОдобрили: " + strings.Join(details.Resit.Approvers, ", ")
	}
	return text
}

func (b *Bot) handleResitDetails(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return fmt.Errorf("укажи номер пересдачи: /resit 17")
	}

	resitID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("некорректный номер пересдачи: %v", err)
	}

	details, err := b.fetchResit(resitID)
	if err != nil {
		return err
	}

	return b.sendMessage(msg.Chat.ID, formatResit(details))
}

func (b *Bot) handleApprove(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return fmt.Errorf("укажи номер пересдачи: /approve 17")
	}

	resitID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("некорректный номер пересдачи: %v", err)
	}

	identity := b.admins[msg.From.ID]

	req := b.client.R().SetHeader(b.config.API.IdentityHeader, identity)
	if b.tokens != nil {
		info, _, err := b.tokens.FetchOrCreateToken(context.Background(), identity)
		if err != nil {
			return fmt.Errorf("ошибка получения токена: %v", err)
		}
		req.SetHeader(b.config.API.TokenHeader, "Bearer "+info.Token)
	}

	var result resitDetails
	resp, err := req.SetResult(&result).Post(fmt.Sprintf("/api/v1/resits/%d/approve", resitID))
	if err != nil {
		return fmt.Errorf("ошибка запроса к API: %v", err)
	}
	if resp.IsError() {
		return fmt.Errorf("API ответил %s: %s", resp.Status(), resp.String())
	}

	verdict := fmt.Sprintf("✅ Голос %s учтён, всего голосов: %d", identity, result.Resit.Approvals)
	if result.State == "resolved" {
		verdict += "\nКворум собран, пересдача одобрена 🎉"
	}

	return b.sendMessage(msg.Chat.ID, verdict)
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}
