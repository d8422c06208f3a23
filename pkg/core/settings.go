package core

import "time"

// Settings represents the main configuration for the application
type Settings struct {
	Telegram  TelegramSettings // Telegram transport settings
	Scheduler SchedulerSettings
	Accounts  AccountDefaults
	Transfer  TransferSettings
	TrialTTL  time.Duration // Length of the free trial window
	Admins    []int64       // Users allowed to change another user's rental
}

// TelegramSettings holds configuration for Telegram integration
type TelegramSettings struct {
	Token          string        // Telegram bot token
	PollTimeout    time.Duration // Long polling timeout
	RateLimit      float64       // Messages per second accepted from one user
	RateLimitBurst int
}

// SchedulerSettings controls the trading ticker
type SchedulerSettings struct {
	Interval time.Duration // Tick period
	Workers  int           // Maximum concurrent dispatches
}

// TransferSettings controls the sweep of generated wallets
type TransferSettings struct {
	SweepAmount float64 // TON moved from each generated wallet on /transfer
}
