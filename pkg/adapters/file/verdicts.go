package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// VerdictLog implements ports.VerdictLog as a single JSON-lines file.
type VerdictLog struct {
	Path string
	appender
}

// NewVerdictLog creates a VerdictLog at path.
// If path is empty, it defaults to ".chancellor/verdicts.jsonl".
func NewVerdictLog(path string) *VerdictLog {
	if path == "" {
		path = filepath.Join(".chancellor", "verdicts.jsonl")
	}
	return &VerdictLog{Path: path}
}

// Publish appends the verdict in its wire form.
func (l *VerdictLog) Publish(ctx context.Context, event domain.VerdictEvent) error {
	return l.write(l.Path, event)
}

// Verdicts reads the log, newest last.
func (l *VerdictLog) Verdicts(ctx context.Context, traceID string, limit int) ([]domain.VerdictEvent, error) {
	var out []domain.VerdictEvent
	err := readLines(l.Path, func(line []byte) error {
		var v domain.VerdictEvent
		if err := json.Unmarshal(line, &v); err != nil {
			return fmt.Errorf("failed to decode verdict: %w", err)
		}
		if traceID == "" || v.TraceID == traceID {
			out = append(out, v)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
