// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lang-test-booking/internal/config"
)

// Setup applies level and format to the standard logrus logger and returns
// it.  Unknown levels fall back to info; any format other than "json" is
// rendered as text.
func Setup(cfg config.LogConfig) *logrus.Logger {
	l := logrus.StandardLogger()
	l.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
