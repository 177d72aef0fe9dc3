package telemetry

import (
	"errors"
	"time"
)

// Exporter is implemented by errors that carry extra attributes worth
// recording alongside them.
type Exporter interface {
	Export() (attrs map[string]string)
}

type Extras = map[string]interface{}

type Telemeter interface {
	Close()
	Error(err error)
	WriteDuration(dura time.Duration, name string, attrs Extras)
}

// Attrs returns the exported attributes of err, or just its message if err is
// not an Exporter.
func Attrs(err error) map[string]string {
	var e Exporter
	if errors.As(err, &e) {
		return e.Export()
	}
	return map[string]string{"error": err.Error()}
}
