package fallback

import (
	"log"
	"time"

	"github.com/diamondburned/vmdk2qcow2/internal/telemetry"
)

type client struct {
	log *log.Logger
}

// New returns a Telemeter that prints everything to logger.
func New(logger *log.Logger) telemetry.Telemeter {
	return client{logger}
}

func (c client) WriteDuration(dura time.Duration, name string, attrs telemetry.Extras) {
	c.log.Printf("[telemetry] %s took %v to complete; attrs: %+v\n", name, dura, attrs)
}

func (c client) Error(err error) {
	c.log.Printf("[telemetry] error: %+v\n", telemetry.Attrs(err))
}

func (client) Close() {}
