package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
)

// LogrusAdapter routes watermill's internal logging into logrus.
type LogrusAdapter struct {
	log logrus.FieldLogger
}

// NewLogrusAdapter returns a watermill.LoggerAdapter backed by log.
func NewLogrusAdapter(log logrus.FieldLogger) watermill.LoggerAdapter {
	return &LogrusAdapter{log: log}
}

func (a *LogrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.entry(fields).WithError(err).Error(msg)
}

func (a *LogrusAdapter) Info(msg string, fields watermill.LogFields) {
	a.entry(fields).Info(msg)
}

func (a *LogrusAdapter) Debug(msg string, fields watermill.LogFields) {
	a.entry(fields).Debug(msg)
}

func (a *LogrusAdapter) Trace(msg string, fields watermill.LogFields) {
	a.entry(fields).Trace(msg)
}

func (a *LogrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LogrusAdapter{log: a.log.WithFields(logrus.Fields(fields))}
}

func (a *LogrusAdapter) entry(fields watermill.LogFields) *logrus.Entry {
	return a.log.WithFields(logrus.Fields(fields))
}
