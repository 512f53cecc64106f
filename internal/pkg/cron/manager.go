package cron

import (
	"Parley/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine           *cron.Cron
	presenceSweepJob *job.PresenceSweepJob
	sweepSpec        string
}

// NewCronManager sweepSpec 为空时不注册在线状态清理
func NewCronManager(presenceSweepJob *job.PresenceSweepJob, sweepSpec string) *Manager {
	return &Manager{
		engine:           cron.New(cron.WithSeconds()),
		presenceSweepJob: presenceSweepJob,
		sweepSpec:        sweepSpec,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if s.sweepSpec == "" {
		log.Info("presence sweep disabled")
		return nil
	}
	if _, err := s.engine.AddJob(s.sweepSpec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(s.presenceSweepJob)); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}
