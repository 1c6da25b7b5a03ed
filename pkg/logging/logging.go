// Package logging holds the process-wide logger. It defaults to a logrus
// text logger on stderr; tests or embedding code may replace or mute it.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"petpipe/internal/models"
)

var logger = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Logger returns the current logger.
func Logger() *logrus.Logger {
	return logger
}

// SetLogger replaces the package logger. Passing nil installs a logger that
// discards everything.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = newLogger(io.Discard)
	}
	logger = l
}

// Configure sets the level from the quiet/verbose flags. Quiet wins.
func Configure(quiet, verbose bool) {
	switch {
	case quiet:
		logger.SetLevel(logrus.WarnLevel)
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
}

// ForSubject returns an entry carrying the subject and session fields.
func ForSubject(id models.Identity) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"subject": id.Subject,
		"session": id.Session,
	})
}
