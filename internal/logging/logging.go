// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logger for env.  Production emits JSON at
// info level; every other environment uses text with full timestamps at
// debug level.  LOG_LEVEL overrides the level when it parses.
func Setup(env string) {
	configure(logrus.StandardLogger(), env, os.Getenv("LOG_LEVEL"), os.Stdout)
}

func configure(l *logrus.Logger, env, level string, out io.Writer) {
	l.SetOutput(out)
	switch strings.ToLower(env) {
	case "prod", "production":
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(logrus.InfoLevel)
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(logrus.DebugLevel)
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
}
