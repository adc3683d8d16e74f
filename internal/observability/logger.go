package observability

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Logger emits one JSON object per line on stdout. Extra fields are
// nested under "fields" so the top-level keys stay stable for log
// queries.
type Logger struct {
	base *log.Logger
}

type entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func NewLogger() *Logger {
	return &Logger{base: log.New(os.Stdout, "", 0)}
}

func (l *Logger) Info(message string, fields map[string]any)  { l.write("info", message, fields) }
func (l *Logger) Warn(message string, fields map[string]any)  { l.write("warn", message, fields) }
func (l *Logger) Error(message string, fields map[string]any) { l.write("error", message, fields) }

func (l *Logger) write(level, message string, fields map[string]any) {
	encoded, err := json.Marshal(entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   message,
		Fields:    fields,
	})
	if err != nil {
		l.base.Println(`{"level":"error","message":"failed to encode log entry"}`)
		return
	}

	l.base.Println(string(encoded))
}
