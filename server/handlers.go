// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"

	"github.com/bvk/buybot/api"
	"github.com/bvk/buybot/book"
	"github.com/bvk/buybot/gobs"
)

func (s *Server) doOrderAdd(ctx context.Context, req *api.OrderAddRequest) (*api.OrderAddResponse, error) {
	if err := req.Check(); err != nil {
		return nil, fmt.Errorf("invalid order add request: %w", err)
	}
	// Orders above the market would execute immediately; reject them while a
	// price sample exists. Before the first sample the target is accepted
	// unchecked.
	if sample, err := s.monitor.LastPrice(ctx); err != nil {
		return nil, err
	} else if sample != nil && req.TargetPrice.GreaterThan(sample.Price) {
		return nil, fmt.Errorf("target price %s is above the market price %s: %w", req.TargetPrice, sample.Price, book.ErrValidation)
	}
	order, err := s.book.Add(ctx, req.TargetPrice, req.Amount)
	if err != nil {
		return nil, err
	}
	return &api.OrderAddResponse{UID: order.ID}, nil
}

func (s *Server) doOrderRemove(ctx context.Context, req *api.OrderRemoveRequest) (*api.OrderRemoveResponse, error) {
	if err := req.Check(); err != nil {
		return nil, fmt.Errorf("invalid order remove request: %w", err)
	}
	if err := s.book.Remove(ctx, req.UID); err != nil {
		return nil, err
	}
	return &api.OrderRemoveResponse{}, nil
}

func (s *Server) doOrderList(ctx context.Context, req *api.OrderListRequest) (*api.OrderListResponse, error) {
	switch req.Status {
	case "", gobs.OrderPending, gobs.OrderExecuted:
	default:
		return nil, fmt.Errorf("unsupported order status %q", req.Status)
	}

	var orders []*gobs.Order
	var err error
	switch req.Status {
	case gobs.OrderPending:
		orders, err = s.book.Pending(ctx)
	case gobs.OrderExecuted:
		orders, err = s.book.Executed(ctx)
	default:
		pendings, perr := s.book.Pending(ctx)
		if perr != nil {
			return nil, perr
		}
		executed, eerr := s.book.Executed(ctx)
		if eerr != nil {
			return nil, eerr
		}
		orders = append(pendings, executed...)
	}
	if err != nil {
		return nil, err
	}

	resp := new(api.OrderListResponse)
	for _, order := range orders {
		item := &api.OrderListResponseItem{
			UID:           order.ID,
			TargetPrice:   order.TargetPrice,
			Amount:        order.Amount,
			Status:        order.Status,
			CreatedAt:     order.CreatedAt,
			ExecutedPrice: order.ExecutedPrice,
			FilledAt:      order.FilledAt,
		}
		if order.Reference != nil {
			item.ReferenceID = order.Reference.ID
			item.ReferenceURL = order.Reference.URL
		}
		resp.Orders = append(resp.Orders, item)
	}
	return resp, nil
}

func (s *Server) doMonitorStart(ctx context.Context, req *api.MonitorStartRequest) (*api.MonitorStartResponse, error) {
	// The job hosts the monitor's control loop; make sure it is alive before
	// flipping the running state.
	if _, err := s.runner.Resume(ctx, MonitorJobUID, s.monitor.Run, s.cg.Context()); err != nil {
		return nil, fmt.Errorf("could not resume monitor job: %w", err)
	}
	if err := s.monitor.Start(ctx); err != nil {
		return nil, err
	}
	return &api.MonitorStartResponse{}, nil
}

func (s *Server) doMonitorStop(ctx context.Context, req *api.MonitorStopRequest) (*api.MonitorStopResponse, error) {
	if err := s.monitor.Stop(ctx); err != nil {
		return nil, err
	}
	return &api.MonitorStopResponse{}, nil
}

func (s *Server) doGetSettings(ctx context.Context, req *api.GetSettingsRequest) (*api.GetSettingsResponse, error) {
	settings, err := s.book.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return &api.GetSettingsResponse{
		MaxBudget:      settings.MaxBudget,
		RefreshMinutes: settings.RefreshMinutes,
	}, nil
}

func (s *Server) doSetSettings(ctx context.Context, req *api.SetSettingsRequest) (*api.SetSettingsResponse, error) {
	if err := req.Check(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	settings := &gobs.Settings{
		MaxBudget:      req.MaxBudget,
		RefreshMinutes: req.RefreshMinutes,
	}
	if err := s.book.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	return &api.SetSettingsResponse{}, nil
}

func (s *Server) doStatus(ctx context.Context, req *api.StatusRequest) (*api.StatusResponse, error) {
	state, err := s.monitor.State(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.book.Settings(ctx)
	if err != nil {
		return nil, err
	}
	pendings, err := s.book.Pending(ctx)
	if err != nil {
		return nil, err
	}
	executed, err := s.book.Executed(ctx)
	if err != nil {
		return nil, err
	}
	spent, err := s.book.TotalSpent(ctx)
	if err != nil {
		return nil, err
	}

	resp := &api.StatusResponse{
		Running:           state.Running,
		StopReason:        state.StopReason,
		NumPending:        len(pendings),
		NumExecuted:       len(executed),
		MaxBudget:         settings.MaxBudget,
		TotalSpent:        spent,
		RefreshMinutes:    effectiveRefreshMinutes(settings),
		ExecutionInFlight: s.exec.InFlight(),
	}
	if sample, err := s.monitor.LastPrice(ctx); err == nil && sample != nil {
		resp.LastPrice = sample.Price
		resp.LastPriceAt = sample.At
	}
	if status := s.monitor.SchedulerStatus(); status.Scheduled {
		resp.NextCheckAt = status.DueAt
	}
	return resp, nil
}

// effectiveRefreshMinutes reports the interval the monitor will actually use
// when settings carry a zero value.
func effectiveRefreshMinutes(settings *gobs.Settings) int {
	if settings.RefreshMinutes > 0 {
		return settings.RefreshMinutes
	}
	return book.DefaultRefreshMinutes
}
