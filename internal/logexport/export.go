// Package logexport turns log entries into the downloadable text export and
// optionally archives a copy.
package logexport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hephaex/Barami/pkg/logger"
	"github.com/hephaex/Barami/pkg/models"
)

var ErrNothingToExport = errors.New("no logs to export")

// Format renders one block per entry:
//
//	[timestamp] [LEVEL] [service] message
//	{ pretty printed metadata, when present }
//
// Blocks are separated by a blank line.
func Format(entries []models.LogEntry) string {
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] [%s] [%s] %s", e.Timestamp, strings.ToUpper(e.Level), e.Service, e.Message)
		if e.Metadata != nil {
			b.WriteString("\n")
			b.WriteString(PrettyJSON(e.Metadata))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// PrettyJSON indents v by two spaces without HTML escaping.
func PrettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func FileName(now time.Time) string {
	return fmt.Sprintf("barami-logs-%d.txt", now.UnixMilli())
}

// Archiver stores a copy of an export and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, name string, body []byte) (string, error)
}

// Recorder counts exports by archive outcome.
type Recorder interface {
	RecordLogExport(archive string)
}

type Exporter struct {
	archive  Archiver
	recorder Recorder
}

// NewExporter accepts a nil archiver, in which case exports are only
// returned to the caller.
func NewExporter(archive Archiver, recorder Recorder) *Exporter {
	return &Exporter{archive: archive, recorder: recorder}
}

type Export struct {
	Name   string
	Body   []byte
	Object string
}

// Export formats entries. Archival failures are logged and do not fail the
// export.
func (e *Exporter) Export(ctx context.Context, entries []models.LogEntry, now time.Time) (*Export, error) {
	if len(entries) == 0 {
		return nil, ErrNothingToExport
	}

	out := &Export{
		Name: FileName(now),
		Body: []byte(Format(entries)),
	}

	outcome := "disabled"
	if e.archive != nil {
		object, err := e.archive.Archive(ctx, out.Name, out.Body)
		if err != nil {
			outcome = "failed"
			logger.Warn("Failed to archive log export",
				logger.String("file", out.Name),
				logger.Err(err),
			)
		} else {
			outcome = "stored"
			out.Object = object
			logger.Info("Log export archived",
				logger.String("file", out.Name),
				logger.String("object", object),
				logger.Int("entries", len(entries)),
			)
		}
	}
	if e.recorder != nil {
		e.recorder.RecordLogExport(outcome)
	}

	return out, nil
}
