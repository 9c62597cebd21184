package names

import (
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Logger receives diagnostics about degraded names.
var Logger = logrus.New()
var log logrus.FieldLogger

func init() {
	log = Logger.WithField("prefix", "names")
	Logger.Formatter = new(prefixed.TextFormatter)
	Logger.Level = logrus.InfoLevel
}
