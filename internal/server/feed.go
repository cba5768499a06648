package server

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// latestFeed holds the newest report delivered by the app's report worker.
type latestFeed struct {
	mu     sync.RWMutex
	report *models.PortfolioReport
	at     time.Time
}

func (s *Server) latestReport() (*models.PortfolioReport, time.Time) {
	s.feed.mu.RLock()
	defer s.feed.mu.RUnlock()
	return s.feed.report, s.feed.at
}

func (s *Server) setLatest(report *models.PortfolioReport, at time.Time) {
	s.feed.mu.Lock()
	s.feed.report = report
	s.feed.at = at
	s.feed.mu.Unlock()
}

// FollowReports stores every successful worker result as the latest report
// until ctx is done or the worker closes.
func (s *Server) FollowReports(ctx context.Context) {
	results := s.app.ReportWorker().Results()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			if res.Err != nil {
				s.logger.Warn().Err(res.Err).Str("period", res.Period.String()).Msg("Report refresh failed")
				continue
			}
			s.setLatest(res.Report, res.Report.GeneratedAt)
			s.logger.Debug().Str("period", res.Period.String()).Msg("Latest report updated")
		}
	}
}
