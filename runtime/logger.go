package runtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/task"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// Logger returns the runtime's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// SetLogger sets the logger of the runtime and of the engine, bridge and
// task packages, each named after its package.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	if l == nil {
		engine.SetLogger(nil)
		bridge.SetLogger(nil)
		task.SetLogger(nil)
		return
	}
	engine.SetLogger(l.Named("engine"))
	bridge.SetLogger(l.Named("bridge"))
	task.SetLogger(l.Named("task"))
}
