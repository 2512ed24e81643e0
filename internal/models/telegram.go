package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a server state notification.
type TelegramMessage struct {
	Address string
	Engine  Engine
	State   TargetState
	Time    time.Time
	Detail  string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
