package qemuimg

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"time"
)

// DefaultBin is where distributions install qemu-img.
const DefaultBin = "/usr/bin/qemu-img"

// Converter runs a qemu-img binary. The zero value is not usable; use New.
type Converter struct {
	Bin string
	// Stdout receives the child's standard output as it runs. Nil discards it.
	// Standard error is always captured, see Result.Output and Error.
	Stdout io.Writer
}

// New returns a Converter for the binary at bin, or DefaultBin if bin is
// empty.
func New(bin string) *Converter {
	if bin == "" {
		bin = DefaultBin
	}
	return &Converter{Bin: bin}
}

type Result struct {
	// Runtime is how long qemu-img itself ran.
	Runtime    time.Duration
	OutputPath string
	// Output is whatever qemu-img wrote to stderr, usually warnings.
	Output string
}

// ConvertArgs returns the argument vector for converting src (read as inFmt)
// into dst (written as outFmt). Every path is its own element and is never
// touched by a shell.
func ConvertArgs(inFmt, outFmt, src, dst string) []string {
	return []string{"convert", "-f", inFmt, "-O", outFmt, src, dst}
}

// ConvertCtx converts src into dst. It blocks until qemu-img exits. A partially
// written dst is left as qemu-img left it.
func (c *Converter) ConvertCtx(ctx context.Context, inFmt, outFmt, src, dst string) (*Result, error) {
	r, err := c.ExecuteCtx(ctx, ConvertArgs(inFmt, outFmt, src, dst)...)
	if err != nil {
		return nil, err
	}
	r.OutputPath = dst
	return r, nil
}

// ExecuteCtx executes qemu-img with the given arguments and waits for it. A
// binary that cannot be started yields a *LaunchError; a non-zero exit yields
// an *Error.
func (c *Converter) ExecuteCtx(ctx context.Context, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.Bin, args...)
	cmd.Stdout = c.Stdout

	// Use a custom local stderr buffer.
	imgErr := Error{Bin: c.Bin, Args: args}
	cmd.Stderr = imgErr.Stderr()

	var now = time.Now()

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Bin: c.Bin, wrapped: err}
	}

	if err := cmd.Wait(); err != nil {
		return nil, imgErr.Wrap(err)
	}

	return &Result{
		Runtime: time.Since(now),
		Output:  imgErr.stderr.String(),
	}, nil
}

// Version returns the raw output of qemu-img --version.
func (c *Converter) Version(ctx context.Context) (string, error) {
	var out strings.Builder

	v := *c
	v.Stdout = &out

	if _, err := v.ExecuteCtx(ctx, "--version"); err != nil {
		return "", err
	}

	return out.String(), nil
}
