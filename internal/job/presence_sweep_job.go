package job

import (
	"Parley/internal/pkg/logger"
	"Parley/internal/service"
	"context"
	log "log/slog"
	"time"
)

// PresenceSweepJob 收敛库内的在线标记，读路径仍以存活判定为准
type PresenceSweepJob struct {
	userSvc service.UserService
	timeout time.Duration
}

func NewPresenceSweepJob(userSvc service.UserService) *PresenceSweepJob {
	return &PresenceSweepJob{
		userSvc: userSvc,
		timeout: 30 * time.Second,
	}
}

func (s *PresenceSweepJob) Run() {
	ctx := logger.WithTraceID(context.Background(), "job-")
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.userSvc.SweepStalePresence(ctx)
	if err != nil {
		log.ErrorContext(ctx, "sweep stale presence error", "err", err)
		return
	}
	if n > 0 {
		log.InfoContext(ctx, "sweep stale presence success", "offline", n)
	}
}
