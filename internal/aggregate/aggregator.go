// Package aggregate builds a tenant's session context by flattening their
// remote document tree into one delimited text blob.
package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/q360-insights/research-portal/internal/storage"
	"github.com/q360-insights/research-portal/pkg/logger"
	"github.com/q360-insights/research-portal/pkg/metrics"
)

// supportedMimes is the allow-list of aggregatable content types.
var supportedMimes = map[string]bool{
	storage.MimePlainText: true,
	storage.MimeCSV:       true,
	storage.MimeDocx:      true,
	storage.MimeGoogleDoc: true,
}

// Result is the output of one aggregation run.
type Result struct {
	// Context is the concatenated text of all eligible files, each section
	// headed by "=== FILE: <name> ===".
	Context string

	// FileCount is the number of eligible files processed, failed ones
	// included (they contribute a placeholder section).
	FileCount int

	// FailedCount is how many of those files contributed a placeholder.
	FailedCount int
}

// Aggregator flattens a folder tree into a single text context.
type Aggregator struct {
	store    storage.Store
	maxDepth int
	logger   *logger.Logger
}

// New creates an aggregator. maxDepth caps folder nesting; entries beyond it
// are skipped.
func New(store storage.Store, maxDepth int, log *logger.Logger) *Aggregator {
	if maxDepth <= 0 {
		maxDepth = 32
	}
	return &Aggregator{
		store:    store,
		maxDepth: maxDepth,
		logger:   log,
	}
}

// Aggregate walks the folder tree depth-first and returns the concatenated
// context. A single unreadable file never aborts the run; it contributes an
// error placeholder as its content.
func (a *Aggregator) Aggregate(ctx context.Context, tenantID, folderID string) (*Result, error) {
	start := time.Now()

	files, err := a.collect(ctx, folderID)
	if err != nil {
		return nil, err
	}

	sections := make([]string, 0, len(files))
	failed := 0
	for _, f := range files {
		content, err := a.fetchContent(ctx, f)
		if err != nil {
			a.logger.Warn("file read failed",
				zap.String("tenant_id", tenantID),
				zap.String("file_id", f.ID),
				zap.String("file_name", f.Name),
				zap.Error(err),
			)
			content = fmt.Sprintf("[Error reading file: %v]", err)
			failed++
		}
		sections = append(sections, fmt.Sprintf("=== FILE: %s ===\n%s\n", f.Name, content))
	}

	result := &Result{
		Context:     strings.Join(sections, "\n\n"),
		FileCount:   len(files),
		FailedCount: failed,
	}

	metrics.RecordAggregation(tenantID, time.Since(start).Seconds(), len(files)-failed, failed)
	a.logger.Info("aggregation complete",
		zap.String("tenant_id", tenantID),
		zap.Int("files", result.FileCount),
		zap.Int("failed", failed),
		zap.Int("context_chars", len(result.Context)),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// collect traverses the tree iteratively with an explicit stack, expanding
// subfolders depth-first at their position in listing order. A visited set
// guards against folder cycles and the depth cap bounds pathological
// nesting.
func (a *Aggregator) collect(ctx context.Context, rootID string) ([]storage.Entry, error) {
	entries, err := a.store.List(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to list root folder: %w", err)
	}

	visited := map[string]bool{rootID: true}

	var files []storage.Entry
	stack := make([]frameEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		stack = append(stack, frameEntry{entry: entries[i], depth: 1})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.entry.IsFolder() {
			if visited[top.entry.ID] {
				continue
			}
			visited[top.entry.ID] = true

			if top.depth >= a.maxDepth {
				metrics.AggregationSkippedTotal.Inc()
				a.logger.Warn("folder depth cap reached",
					zap.String("folder_id", top.entry.ID),
					zap.Int("depth", top.depth),
				)
				continue
			}

			children, err := a.store.List(ctx, top.entry.ID)
			if err != nil {
				// A broken subfolder costs its own subtree, not the run.
				a.logger.Warn("subfolder listing failed",
					zap.String("folder_id", top.entry.ID),
					zap.Error(err),
				)
				continue
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, frameEntry{entry: children[i], depth: top.depth + 1})
			}
			continue
		}

		if supportedMimes[top.entry.MimeType] {
			files = append(files, top.entry)
		}
	}

	return files, nil
}

type frameEntry struct {
	entry storage.Entry
	depth int
}

func (a *Aggregator) fetchContent(ctx context.Context, f storage.Entry) (string, error) {
	switch f.MimeType {
	case storage.MimeGoogleDoc:
		data, err := a.store.ExportText(ctx, f.ID)
		if err != nil {
			return "", err
		}
		return decodeText(data), nil

	case storage.MimeDocx:
		data, err := a.store.Download(ctx, f.ID)
		if err != nil {
			return "", err
		}
		return extractDocx(data)

	default:
		data, err := a.store.Download(ctx, f.ID)
		if err != nil {
			return "", err
		}
		return decodeText(data), nil
	}
}
