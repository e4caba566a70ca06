package utils

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apex/log"
)

// colors.
const (
	red    = 31
	blue   = 34
	yellow = 33
	gray   = 37
)

var levelColors = [...]int{
	log.DebugLevel: gray,
	log.InfoLevel:  blue,
	log.WarnLevel:  yellow,
	log.ErrorLevel: red,
	log.FatalLevel: red,
}

var levelNames = [...]string{
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  "INFO",
	log.WarnLevel:  "WARN",
	log.ErrorLevel: "ERROR",
	log.FatalLevel: "FATAL",
}

var levelChars = [...]string{
	log.DebugLevel: "D",
	log.InfoLevel:  "I",
	log.WarnLevel:  "W",
	log.ErrorLevel: "E",
	log.FatalLevel: "F",
}

const (
	timeFormat = "2006-01-02T15:04:05.000Z"
	// The field rendered as a prefix of the message
	contextField = "context"
)

// LogHandler with TTY awareness.
// The "context" field is printed before the message as [context].
type LogHandler struct {
	mu     sync.Mutex
	writer io.Writer
	tty    bool
	now    func() time.Time
}

func NewLogHandler(w io.Writer, tty bool) *LogHandler {
	return &LogHandler{writer: w, tty: tty, now: time.Now}
}

// HandleLog is a method called by logger to record a log entry
func (h *LogHandler) HandleLog(e *log.Entry) error {
	ts := h.now().UTC().Format(timeFormat)

	h.mu.Lock()
	defer h.mu.Unlock()

	color := levelColors[e.Level]

	if h.tty {
		fmt.Fprintf(h.writer, "\033[%dm%6s\033[0m %s", color, levelNames[e.Level], ts)
	} else {
		fmt.Fprintf(h.writer, "%s %s", levelChars[e.Level], ts)
	}

	if ctx := e.Fields.Get(contextField); ctx != nil {
		fmt.Fprintf(h.writer, " [%v]", ctx)
	}

	fmt.Fprintf(h.writer, " %s", e.Message)

	for _, name := range e.Fields.Names() {
		if name == contextField {
			continue
		}

		if h.tty {
			fmt.Fprintf(h.writer, " \033[%dm%s\033[0m=%v", color, name, e.Fields.Get(name))
		} else {
			fmt.Fprintf(h.writer, " %s=%v", name, e.Fields.Get(name))
		}
	}

	fmt.Fprintln(h.writer)

	return nil
}
