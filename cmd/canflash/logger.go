package main

import (
	"github.com/sirupsen/logrus"

	"github.com/canflash/canflash/session"
)

// logrusLogger adapts a *logrus.Entry to session.Logger. logrus's own
// Debug/Info/Error take variadic ...interface{} appended as a message
// suffix, not keyed fields, so this pairs up kv into WithFields before
// logging.
type logrusLogger struct {
	entry *logrus.Entry
}

func newLogrusLogger(level logrus.Level) session.Logger {
	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logrusLogger{entry: logrus.NewEntry(log)}
}

func (l logrusLogger) withFields(kv []interface{}) *logrus.Entry {
	if len(kv) == 0 {
		return l.entry
	}
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l logrusLogger) Debug(msg string, kv ...interface{}) { l.withFields(kv).Debug(msg) }
func (l logrusLogger) Info(msg string, kv ...interface{})  { l.withFields(kv).Info(msg) }
func (l logrusLogger) Error(msg string, kv ...interface{}) { l.withFields(kv).Error(msg) }

// verbosityToLevel maps repeated -v flags to a logrus level: Info by
// default, Debug at one -v, Trace at two or more.
func verbosityToLevel(count int) logrus.Level {
	switch {
	case count >= 2:
		return logrus.TraceLevel
	case count == 1:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}
