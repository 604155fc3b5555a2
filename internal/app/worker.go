package app

import (
	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/config"
	"github.com/yoockh/casecoach/internal/notify"
	"github.com/yoockh/casecoach/internal/workers"
)

// NewWorkerPool builds the batch pool. Its events go through Redis so the
// API instances holding WebSocket clients can forward them.
func NewWorkerPool(cfg config.App, log *logrus.Logger, st Stores, core *Core) (*workers.SessionWorkerPool, *notify.Dispatcher) {
	events := notify.NewDispatcher(log, notify.NewRedisSink(st.Redis))
	return &workers.SessionWorkerPool{
		Redis:           st.Redis,
		Sessions:        core.Sessions,
		Results:         core.Results,
		Processor:       core.Processor,
		Media:           core.FFmpeg,
		Events:          events,
		NumWorkers:      cfg.WorkerCount,
		TempDir:         cfg.TempDir,
		QuestionTimeout: cfg.QuestionTimeout,
		Logger:          log,
		Stream:          cfg.ProcessStream,
	}, events
}
