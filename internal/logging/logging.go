package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger. Level follows logrus numbering
// (0 panic .. 6 trace); out of range values fall back to info.
func Setup(level int, json bool) {
	log.SetOutput(os.Stdout)
	if level < int(log.PanicLevel) || level > int(log.TraceLevel) {
		level = int(log.InfoLevel)
	}
	log.SetLevel(log.Level(uint32(level)))
	if json {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
