package logger

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex  = regexp.MustCompile(`eyJ[^\s]+`)
	userIDRegex = regexp.MustCompile(`\buser_id\s*=\s*[\w-]+`)
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.MessageFieldName = "message"
}

// Logger is a centralized structured logger
type Logger struct {
	zl zerolog.Logger
}

// New creates a new Logger writing JSON lines to stdout
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

func NewWithWriter(w io.Writer) *Logger {
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// SetLevel changes the global level. Unknown names leave it unchanged.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

// Anonymize replaces sensitive information in logs (emails, tokens, IDs)
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = userIDRegex.ReplaceAllString(s, "user_id=[USER_ID]")
	return s
}

func (l *Logger) Info(module, msg string) {
	l.zl.Info().Str("module", module).Msg(Anonymize(msg))
}

func (l *Logger) Debug(module, msg string) {
	l.zl.Debug().Str("module", module).Msg(Anonymize(msg))
}

func (l *Logger) Error(module, msg string, err error) {
	ev := l.zl.Error().Str("module", module)
	if err != nil {
		ev = ev.Str("error", Anonymize(err.Error()))
	}
	ev.Msg(Anonymize(msg))
}
