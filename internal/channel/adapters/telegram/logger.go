package telegram

import (
	"fmt"
	"log/slog"
)

// slogBotLogger routes tgbotapi's internal logging into slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug("tgbotapi", slog.String("msg", fmt.Sprint(v...)))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug("tgbotapi", slog.String("msg", fmt.Sprintf(format, v...)))
}
