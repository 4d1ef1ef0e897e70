package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the package-level logrus logger. Release mode logs JSON,
// anything else logs human readable text.
func Setup(ginMode, level string) {
	log.SetOutput(os.Stdout)

	if ginMode == "release" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
