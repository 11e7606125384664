package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus instance. level accepts the usual
// logrus names ("debug", "info", ...); unknown values fall back to info.
func Init(level, env string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
	logrus.SetOutput(os.Stdout)

	if env == "prod" || env == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// For returns an entry tagged with the originating component, so log lines
// can be filtered per subsystem (extract, embedding, ingest, ...).
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
