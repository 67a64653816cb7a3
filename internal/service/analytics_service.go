package service

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk/internal/repository"
)

// AnalyticsService aggregates dashboard numbers for operators.
type AnalyticsService struct {
	tickets repository.TicketRepository
	now     func() time.Time
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(tickets repository.TicketRepository) *AnalyticsService {
	return &AnalyticsService{tickets: tickets, now: time.Now}
}

// Overview returns totals plus chat volume over the last seven days.
func (s *AnalyticsService) Overview(ctx context.Context) (*repository.TicketAnalytics, error) {
	return s.tickets.Analytics(ctx, s.now().Add(-7*24*time.Hour))
}
