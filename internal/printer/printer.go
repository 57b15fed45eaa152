// Package printer renders call outcomes and workspace listings for the
// terminal, either as colored text or as JSON lines.
package printer

import (
	"context"
	"sync/atomic"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/runner"
	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/internal/workspace"
	"github.com/funnyzak/mockflow/pkg/endpoint"
	"github.com/funnyzak/mockflow/pkg/i18n"
)

// Printer 抽象输出接口
type Printer interface {
	PrintOutcome(*runner.Outcome) error
	PrintEndpoints(items []workspace.Item, folders []endpoint.Folder) error
	PrintHistory(entries []*storage.HistoryEntry, total int) error
	PrintAnalytics(storage.Analytics) error
}

var globalCallCounter uint64

func nextCallNumber() uint64 {
	return atomic.AddUint64(&globalCallCounter, 1)
}

// New 创建指定模式的 Printer
func New(mode string, log logger.Logger, cfg *config.OutputConfig, translator *i18n.Translator, locale string) Printer {
	if cfg == nil {
		cfg = &config.OutputConfig{}
	}
	switch mode {
	case "json":
		return NewJSONPrinter(log)
	default:
		return NewConsolePrinter(log, &cfg.BodyView, translator, locale)
	}
}

// Listener adapts p to receive outcomes from a runner.
func Listener(p Printer) runner.Listener {
	return func(_ context.Context, o *runner.Outcome) error {
		return p.PrintOutcome(o)
	}
}
