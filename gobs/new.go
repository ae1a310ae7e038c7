// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"fmt"
)

func NewByTypename(typename string) (any, error) {
	var v any
	switch typename {
	case "Order":
		v = new(Order)
	case "Settings":
		v = new(Settings)
	case "ExecutionProgress":
		v = new(ExecutionProgress)
	case "MonitorState":
		v = new(MonitorState)
	case "PriceSample":
		v = new(PriceSample)
	case "JobData":
		v = new(JobData)
	case "TelegramState":
		v = new(TelegramState)
	default:
		return nil, fmt.Errorf("unsupported type name %q", typename)
	}
	return v, nil
}
