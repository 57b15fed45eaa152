package printer

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/runner"
	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/internal/workspace"
	"github.com/funnyzak/mockflow/pkg/endpoint"
)

// JSONPrinter 以 JSON 行输出
type JSONPrinter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	logger  logger.Logger
}

// NewJSONPrinter 创建 JSON 输出器
func NewJSONPrinter(log logger.Logger) *JSONPrinter {
	if log == nil {
		log = logger.NewNop()
	}
	p := &JSONPrinter{logger: log}
	p.SetOutput(os.Stdout)
	return p
}

// SetOutput 替换输出目标，便于测试
func (p *JSONPrinter) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	p.mu.Lock()
	p.encoder = encoder
	p.mu.Unlock()
}

type jsonEnvelope struct {
	Type string      `json:"type"`
	ID   uint64      `json:"id,omitempty"`
	Data interface{} `json:"data"`
	// RequestBody carries the inbound body, which Incoming does not serialize.
	RequestBody string `json:"request_body,omitempty"`
	Total       *int   `json:"total,omitempty"`
}

type jsonEndpoint struct {
	*endpoint.Endpoint
	Favorite bool `json:"favorite"`
}

func (p *JSONPrinter) emit(env jsonEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.encoder.Encode(env); err != nil {
		p.logger.Error("Failed to encode JSON output", "type", env.Type, "error", err)
		return err
	}
	return nil
}

// PrintOutcome 输出一次调用
func (p *JSONPrinter) PrintOutcome(o *runner.Outcome) error {
	env := jsonEnvelope{Type: "call", ID: nextCallNumber(), Data: o}
	if o.Request != nil {
		env.RequestBody = o.Request.BodyText()
	}
	return p.emit(env)
}

// PrintEndpoints 输出接口列表
func (p *JSONPrinter) PrintEndpoints(items []workspace.Item, folders []endpoint.Folder) error {
	eps := make([]jsonEndpoint, 0, len(items))
	for _, item := range items {
		eps = append(eps, jsonEndpoint{Endpoint: item.Endpoint, Favorite: item.Favorite})
	}
	if folders == nil {
		folders = []endpoint.Folder{}
	}
	return p.emit(jsonEnvelope{Type: "endpoints", Data: map[string]interface{}{
		"endpoints": eps,
		"folders":   folders,
	}})
}

// PrintHistory 输出调用历史
func (p *JSONPrinter) PrintHistory(entries []*storage.HistoryEntry, total int) error {
	if entries == nil {
		entries = []*storage.HistoryEntry{}
	}
	return p.emit(jsonEnvelope{Type: "history", Data: entries, Total: &total})
}

// PrintAnalytics 输出统计
func (p *JSONPrinter) PrintAnalytics(a storage.Analytics) error {
	return p.emit(jsonEnvelope{Type: "analytics", Data: a})
}
