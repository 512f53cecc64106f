package cron

import log "log/slog"

// InitCron 注册并启动定时任务，spec 非法时返回错误阻止启动
func InitCron(mgr *Manager) error {
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	mgr.Start()
	log.Info("Cron Jobs started", "entries", len(mgr.engine.Entries()))
	return nil
}
