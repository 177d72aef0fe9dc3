// Package config loads settings from the environment. Command-line flags are
// applied on top by the caller.
package config

import (
	"github.com/Netflix/go-env"
	"github.com/diamondburned/vmdk2qcow2/internal/telemetry/influx"
	"github.com/diamondburned/vmdk2qcow2/qemuimg"
	"github.com/pkg/errors"
)

type Config struct {
	Influx influx.Config

	QemuImg string `env:"VMDK2QCOW2_QEMU_IMG"` // default qemuimg.DefaultBin
	Mirror  string `env:"VMDK2QCOW2_MIRROR"`   // empty disables mirroring
}

// Load reads the configuration out of environ, which is in the os.Environ
// format.
func Load(environ []string) (Config, error) {
	var cfg Config

	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return cfg, errors.Wrap(err, "Failed to read environment")
	}

	if err := env.Unmarshal(es, &cfg); err != nil {
		return cfg, errors.Wrap(err, "Failed to load env")
	}

	if cfg.QemuImg == "" {
		cfg.QemuImg = qemuimg.DefaultBin
	}

	return cfg, nil
}
