// Copyright (c) 2025 BVK Chaitanya

// Package api defines the JSON request/response messages between the command
// line client and the buybot daemon.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderAddPath    = "/buybot/order/add"
	OrderRemovePath = "/buybot/order/remove"
	OrderListPath   = "/buybot/order/list"

	MonitorStartPath = "/buybot/monitor/start"
	MonitorStopPath  = "/buybot/monitor/stop"

	GetSettingsPath = "/buybot/settings/get"
	SetSettingsPath = "/buybot/settings/set"

	StatusPath = "/buybot/status"
)

type OrderAddRequest struct {
	TargetPrice decimal.Decimal
	Amount      decimal.Decimal
}

type OrderAddResponse struct {
	UID string
}

type OrderRemoveRequest struct {
	UID string
}

type OrderRemoveResponse struct {
}

type OrderListRequest struct {
	// Status filters by order status; empty selects all.
	Status string
}

type OrderListResponseItem struct {
	UID string

	TargetPrice decimal.Decimal
	Amount      decimal.Decimal

	Status    string
	CreatedAt time.Time

	ExecutedPrice decimal.Decimal
	FilledAt      time.Time
	ReferenceID   string
	ReferenceURL  string
}

type OrderListResponse struct {
	Orders []*OrderListResponseItem
}

type MonitorStartRequest struct {
}

type MonitorStartResponse struct {
}

type MonitorStopRequest struct {
}

type MonitorStopResponse struct {
}

type GetSettingsRequest struct {
}

type GetSettingsResponse struct {
	MaxBudget      decimal.Decimal
	RefreshMinutes int
}

type SetSettingsRequest struct {
	MaxBudget      decimal.Decimal
	RefreshMinutes int
}

type SetSettingsResponse struct {
}

type StatusRequest struct {
}

type StatusResponse struct {
	Running    bool
	StopReason string

	NumPending  int
	NumExecuted int

	MaxBudget  decimal.Decimal
	TotalSpent decimal.Decimal

	RefreshMinutes int

	LastPrice   decimal.Decimal
	LastPriceAt time.Time

	NextCheckAt time.Time

	ExecutionInFlight bool
}
