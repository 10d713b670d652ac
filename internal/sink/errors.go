package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// OpenErrorLog returns a logger appending ISO-8601 timestamped lines to
// error_log.txt in dir, and a func that flushes and closes the file.
func OpenErrorLog(dir string) (*zap.Logger, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, eris.Wrapf(err, "sink: create %s", dir)
	}
	path := filepath.Join(dir, ErrorLogFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "sink: open %s", path)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), zap.WarnLevel)
	logger := zap.New(core)

	closeFn := func() error {
		_ = logger.Sync()
		return f.Close()
	}
	return logger, closeFn, nil
}

// SummaryEntry is one line of the error summary.
type SummaryEntry struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ErrorSummary is the error-summary artifact.
type ErrorSummary struct {
	RunID  string         `json:"run_id"`
	Total  int            `json:"total"`
	Errors []SummaryEntry `json:"errors"`
}

// WriteErrorSummary writes counts, most frequent first, to
// error_summary.json in dir and returns the file path.
func WriteErrorSummary(dir, runID string, counts map[string]int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "sink: create %s", dir)
	}

	s := ErrorSummary{RunID: runID, Errors: make([]SummaryEntry, 0, len(counts))}
	for msg, n := range counts {
		s.Errors = append(s.Errors, SummaryEntry{Message: msg, Count: n})
		s.Total += n
	}
	sort.Slice(s.Errors, func(i, j int) bool {
		if s.Errors[i].Count != s.Errors[j].Count {
			return s.Errors[i].Count > s.Errors[j].Count
		}
		return s.Errors[i].Message < s.Errors[j].Message
	})

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "sink: encode error summary")
	}
	path := filepath.Join(dir, ErrorSummaryFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "sink: write %s", path)
	}
	return path, nil
}
