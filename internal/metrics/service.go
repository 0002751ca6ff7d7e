// Package metrics is the read-side aggregation over the event store. It has
// no routing state; everything here is derived from recorded rows.
package metrics

import (
	"context"
	"errors"
	"math"
	"time"

	"call-router/internal/store"
)

var ErrInvalidRequest = errors.New("metrics: invalid request")

const kpiWindow = 24 * time.Hour

// KPIReport is the trailing-24h summary.
type KPIReport struct {
	Window          string  `json:"window"`
	Department      string  `json:"department"`
	InboundVolume   int     `json:"inbound_volume"`
	SelectionRate   float64 `json:"selection_rate"`
	TransferSuccess float64 `json:"transfer_success"`
}

type TrendReport struct {
	Days       int                `json:"days"`
	Department string             `json:"department"`
	Trend      []store.TrendPoint `json:"trend"`
}

type RecentReport struct {
	Limit      int                `json:"limit"`
	Department string             `json:"department"`
	Calls      []store.RecentCall `json:"calls"`
}

type Service struct {
	repo store.Reader
	now  func() time.Time
}

func NewService(repo store.Reader) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) KPIs(ctx context.Context, department string) (KPIReport, error) {
	if department != "" && !store.ValidDepartment(department) {
		return KPIReport{}, ErrInvalidRequest
	}

	stats, err := s.repo.CallStats(ctx, s.now().Add(-kpiWindow), department)
	if err != nil {
		return KPIReport{}, err
	}

	return KPIReport{
		Window:          "24h",
		Department:      departmentOrAll(department),
		InboundVolume:   stats.Volume,
		SelectionRate:   round3(rate(stats.WithSelection, stats.Volume)),
		TransferSuccess: round3(rate(stats.TransferSuccess, stats.TransferTotal)),
	}, nil
}

func (s *Service) Trend(ctx context.Context, days int, department string) (TrendReport, error) {
	if days < 1 || days > 365 {
		return TrendReport{}, ErrInvalidRequest
	}
	if department != "" && !store.ValidDepartment(department) {
		return TrendReport{}, ErrInvalidRequest
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	trend, err := s.repo.VolumeTrend(ctx, since, department)
	if err != nil {
		return TrendReport{}, err
	}
	return TrendReport{Days: days, Department: departmentOrAll(department), Trend: trend}, nil
}

func (s *Service) Recent(ctx context.Context, limit int, department string) (RecentReport, error) {
	if limit < 1 || limit > 1000 {
		return RecentReport{}, ErrInvalidRequest
	}
	if department != "" && !store.ValidDepartment(department) {
		return RecentReport{}, ErrInvalidRequest
	}

	calls, err := s.repo.RecentCalls(ctx, limit, department)
	if err != nil {
		return RecentReport{}, err
	}
	return RecentReport{Limit: limit, Department: departmentOrAll(department), Calls: calls}, nil
}

// rate is 0.0 on an empty denominator: no calls means no selection rate,
// no transfers means no success rate.
func rate(num, den int) float64 {
	if den <= 0 {
		return 0.0
	}
	return float64(num) / float64(den)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func departmentOrAll(d string) string {
	if d == "" {
		return "all"
	}
	return d
}
