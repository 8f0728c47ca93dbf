package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter implements Emitter by writing structured output to a
// writer.
//
// Two output modes:
//   - Text mode (default): human-readable lines with key=value pairs
//   - JSON mode: one JSON object per line (JSONL)
//
// Example text output:
//
//	[TASK_COMPLETED] execution=9f1c source=say_hello_ab12 name=say_hello
//
// Example JSON output:
//
//	{"execution_id":"9f1c","source_id":"say_hello_ab12","type":"TASK_COMPLETED","name":"say_hello","msg":"","meta":null}
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter. A nil writer defaults to
// os.Stdout; jsonMode selects JSONL output instead of text.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes the event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.jsonMode {
		l.emitJSON(event)
		return
	}
	l.emitText(event)
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		ExecutionID string                 `json:"execution_id"`
		SourceID    string                 `json:"source_id"`
		Type        string                 `json:"type"`
		Name        string                 `json:"name"`
		Msg         string                 `json:"msg,omitempty"`
		Meta        map[string]interface{} `json:"meta,omitempty"`
	}{
		ExecutionID: event.ExecutionID,
		SourceID:    event.SourceID,
		Type:        event.Type,
		Name:        event.Name,
		Msg:         event.Msg,
		Meta:        event.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] execution=%s source=%s name=%s",
		event.Type, event.ExecutionID, event.SourceID, event.Name)
	if event.Msg != "" {
		fmt.Fprintf(l.writer, " msg=%q", event.Msg)
	}
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	fmt.Fprint(l.writer, "\n")
}
