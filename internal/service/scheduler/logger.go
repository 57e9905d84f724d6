package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"

	applogger "MarketMood/pkg/logger"
)

// cronLogger routes the cron runtime's messages through the app logger.
type cronLogger struct {
	l *applogger.Logger
}

var _ cron.Logger = cronLogger{}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	out := make([]applogger.Field, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	if len(kv)%2 == 1 {
		out = append(out, applogger.Any("extra", kv[len(kv)-1]))
	}
	return out
}
