package utils

import (
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/joomcode/errorx"
)

// InitLogger sets log level, format and output (stdout)
func InitLogger(format string, level string) error {
	return InitLoggerWithWriter(os.Stdout, IsTTY(), format, level)
}

func InitLoggerWithWriter(w io.Writer, tty bool, format string, level string) error {
	logLevel, err := log.ParseLevel(level)

	if err != nil {
		return errorx.IllegalArgument.New("unknown log level: %s; available levels are: debug, info, warn, error, fatal", level)
	}

	switch format {
	case "text":
		log.SetHandler(NewLogHandler(w, tty))
	case "json":
		log.SetHandler(json.New(w))
	default:
		return errorx.IllegalArgument.New("unknown log format: %s; available formats are: text, json", format)
	}

	log.SetLevel(logLevel)

	return nil
}
