// Package stub turns a test binary into a fake qemu-img. A test package calls
// Main from its TestMain, then points a converter at the test binary itself
// with New.
package stub

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

const (
	envMarker = "VMDK2QCOW2_STUB"
	envRecord = "VMDK2QCOW2_STUB_RECORD"
	envExit   = "VMDK2QCOW2_STUB_EXIT"
	envStderr = "VMDK2QCOW2_STUB_STDERR"
	envKill   = "VMDK2QCOW2_STUB_KILL"
)

// VersionOutput is what the fake prints for --version.
const VersionOutput = `qemu-img version 8.2.2 (Debian 1:8.2.2+ds-0ubuntu1.4)
Copyright (c) 2003-2023 Fabrice Bellard and the QEMU Project developers
`

// Image is what the fake writes to the destination of a successful convert.
const Image = "QFI\xfb"

// Main acts as qemu-img and exits if the process was started as a fake.
// Otherwise it returns immediately.
func Main() {
	if os.Getenv(envMarker) != "1" {
		return
	}
	os.Exit(fake(os.Args[1:]))
}

func fake(args []string) int {
	if rec := os.Getenv(envRecord); rec != "" {
		b, err := json.Marshal(args)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stub:", err)
			return 99
		}
		if err := os.WriteFile(rec, b, 0644); err != nil {
			fmt.Fprintln(os.Stderr, "stub:", err)
			return 99
		}
	}

	if len(args) == 1 && args[0] == "--version" {
		fmt.Print(VersionOutput)
		return 0
	}

	fmt.Fprint(os.Stderr, os.Getenv(envStderr))

	if os.Getenv(envKill) == "1" {
		// SIGKILL on unix, so the parent sees no exit code.
		p, err := os.FindProcess(os.Getpid())
		if err == nil {
			p.Kill()
		}
		select {}
	}

	code, _ := strconv.Atoi(os.Getenv(envExit))
	if code == 0 && len(args) > 0 {
		if err := os.WriteFile(args[len(args)-1], []byte(Image), 0644); err != nil {
			fmt.Fprintln(os.Stderr, "stub:", err)
			return 1
		}
	}

	return code
}

// Fake is an armed fake qemu-img.
type Fake struct {
	Bin    string
	record string
}

// New arms the fake for the duration of t. The fake exits with exitCode.
func New(t testing.TB, exitCode int) *Fake {
	t.Helper()

	bin, err := os.Executable()
	if err != nil {
		t.Fatal("Failed to find the test binary:", err)
	}

	rec := filepath.Join(t.TempDir(), "argv.json")

	t.Setenv(envMarker, "1")
	t.Setenv(envRecord, rec)
	t.Setenv(envExit, strconv.Itoa(exitCode))
	t.Setenv(envStderr, "")
	t.Setenv(envKill, "")

	return &Fake{Bin: bin, record: rec}
}

// SetStderr makes the fake print s to stderr when converting.
func (f *Fake) SetStderr(t testing.TB, s string) {
	t.Setenv(envStderr, s)
}

// SetKilled makes the fake kill itself instead of exiting when converting.
func (f *Fake) SetKilled(t testing.TB) {
	t.Setenv(envKill, "1")
}

// Ran returns true if the fake was started at least once.
func (f *Fake) Ran() bool {
	_, err := os.Stat(f.record)
	return err == nil
}

// Args returns the arguments the fake was last started with, excluding argv[0],
// or nil if it never ran.
func (f *Fake) Args(t testing.TB) []string {
	t.Helper()

	b, err := os.ReadFile(f.record)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal("Failed to read recorded args:", err)
	}

	var args []string
	if err := json.Unmarshal(b, &args); err != nil {
		t.Fatal("Failed to decode recorded args:", err)
	}

	return args
}
