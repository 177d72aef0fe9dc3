package qemuimg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Error is returned when qemu-img started but did not exit cleanly.
type Error struct {
	Bin  string
	Args []string

	wrapped error
	stderr  bytes.Buffer
}

func (err *Error) Error() string {
	return fmtError("qemu-img failed", err.wrapped, err.stderr)
}

func (err *Error) Unwrap() error {
	return err.wrapped
}

func (err *Error) Wrap(wrapped error) error {
	err.wrapped = wrapped
	return err
}

func (err *Error) Stderr() io.Writer {
	return &err.stderr
}

// ExitCode returns the exit code of qemu-img, or -1 if it was killed by a
// signal or never produced one.
func (err *Error) ExitCode() int {
	var exitErr *exec.ExitError
	if !errors.As(err.wrapped, &exitErr) {
		return -1
	}
	return exitErr.ExitCode()
}

func (err *Error) Export() map[string]string {
	return map[string]string{
		"bin":       err.Bin,
		"error":     err.wrapped.Error(),
		"exit_code": strconv.Itoa(err.ExitCode()),
		"stderr":    err.stderr.String(),
	}
}

// LaunchError is returned when qemu-img could not be started at all, such as
// when the binary is missing or not executable.
type LaunchError struct {
	Bin     string
	wrapped error
}

func (err *LaunchError) Error() string {
	return "failed to launch " + err.Bin + ": " + err.wrapped.Error()
}

func (err *LaunchError) Unwrap() error {
	return err.wrapped
}

func (err *LaunchError) Export() map[string]string {
	return map[string]string{
		"bin":   err.Bin,
		"error": err.wrapped.Error(),
	}
}

func fmtError(prefix string, err error, stderr bytes.Buffer) string {
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return fmt.Sprintf("%s: %s", prefix, err.Error())
	}
	return fmt.Sprintf("%s: %s\n%s", prefix, err.Error(), msg)
}

// ErrIsLaunch returns true if qemu-img never started.
func ErrIsLaunch(err error) bool {
	var launchErr *LaunchError
	return errors.As(err, &launchErr)
}
