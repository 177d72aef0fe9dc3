package version

import (
	"github.com/diamondburned/sfmatch"
	"github.com/pkg/errors"
)

// ErrNoVersion is returned when the output has no version line.
var ErrNoVersion = errors.New("no qemu-img version found")

// Info is what qemu-img --version reports about itself.
type Info struct {
	// Patterns are ungreedy, so the capture is anchored on what follows it.
	Version string `sfmatch:"qemu-img version (\\S+)(?:\\s|$)"`
}

var match = sfmatch.MustCompile((*Info)(nil))

func Parse(output string) (*Info, error) {
	var info Info
	if err := match.Unmarshal(output, &info); err != nil {
		return nil, errors.Wrap(err, "Failed to parse qemu-img version")
	}

	if info.Version == "" {
		return nil, ErrNoVersion
	}

	return &info, nil
}
