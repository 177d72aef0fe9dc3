package qemuimg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diamondburned/vmdk2qcow2/internal/stub"
	"github.com/google/go-cmp/cmp"
)

func TestMain(m *testing.M) {
	stub.Main()
	os.Exit(m.Run())
}

func TestConvertArgs(t *testing.T) {
	got := ConvertArgs("raw", "vdi", "in.img", "out image.vdi")
	want := []string{"convert", "-f", "raw", "-O", "vdi", "in.img", "out image.vdi"}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Unexpected args (-want +got):\n%s", diff)
	}
}

func TestNewDefaultBin(t *testing.T) {
	if c := New(""); c.Bin != DefaultBin {
		t.Fatal("Unexpected default bin:", c.Bin)
	}
	if c := New("/opt/qemu/bin/qemu-img"); c.Bin != "/opt/qemu/bin/qemu-img" {
		t.Fatal("Unexpected bin:", c.Bin)
	}
}

func TestConvertCtx(t *testing.T) {
	f := stub.New(t, 0)
	f.SetStderr(t, "warning: sparse\n")

	dir := t.TempDir()
	src := filepath.Join(dir, "my disk.vmdk")
	dst := filepath.Join(dir, "my disk; rm -rf $HOME.qcow2")

	r, err := New(f.Bin).ConvertCtx(context.Background(), "vmdk", "qcow2", src, dst)
	if err != nil {
		t.Fatal("Failed to convert:", err)
	}

	want := []string{"convert", "-f", "vmdk", "-O", "qcow2", src, dst}
	if diff := cmp.Diff(want, f.Args(t)); diff != "" {
		t.Fatalf("Unexpected args (-want +got):\n%s", diff)
	}

	if r.OutputPath != dst {
		t.Fatal("Unexpected output path:", r.OutputPath)
	}

	if r.Output != "warning: sparse\n" {
		t.Fatalf("Unexpected output: %q", r.Output)
	}

	if _, err := os.Stat(dst); err != nil {
		t.Fatal("Destination was not written:", err)
	}
}

func TestConvertCtxExitCode(t *testing.T) {
	f := stub.New(t, 3)
	f.SetStderr(t, "qemu-img: Could not open 'a.vmdk'\n")

	_, err := New(f.Bin).ConvertCtx(context.Background(), "vmdk", "qcow2", "a.vmdk", "a.qcow2")
	if err == nil {
		t.Fatal("Expected an error.")
	}

	var imgErr *Error
	if !errors.As(err, &imgErr) {
		t.Fatalf("Unexpected error type %T: %v", err, err)
	}

	if code := imgErr.ExitCode(); code != 3 {
		t.Fatal("Unexpected exit code:", code)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatal("Error does not unwrap to an exit error.")
	}

	if ErrIsLaunch(err) {
		t.Fatal("Exit error reported as a launch error.")
	}

	if !strings.Contains(err.Error(), "Could not open") {
		t.Fatal("Error does not carry stderr:", err)
	}

	if e := imgErr.Export(); e["exit_code"] != "3" {
		t.Fatal("Unexpected exported exit code:", e["exit_code"])
	}
}

func TestConvertCtxKilled(t *testing.T) {
	f := stub.New(t, 0)
	f.SetKilled(t)

	_, err := New(f.Bin).ConvertCtx(context.Background(), "vmdk", "qcow2", "a.vmdk", "a.qcow2")

	var imgErr *Error
	if !errors.As(err, &imgErr) {
		t.Fatalf("Expected a conversion error, got %v", err)
	}

	if code := imgErr.ExitCode(); code != -1 {
		t.Fatal("Unexpected exit code for a killed process:", code)
	}
}

func TestConvertCtxLaunchError(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "qemu-img")

	_, err := New(bin).ConvertCtx(context.Background(), "vmdk", "qcow2", "a.vmdk", "a.qcow2")
	if !ErrIsLaunch(err) {
		t.Fatalf("Expected a launch error, got %v", err)
	}

	var imgErr *Error
	if errors.As(err, &imgErr) {
		t.Fatal("Launch error reported as a conversion error.")
	}
}

func TestConvertCtxNotExecutable(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "qemu-img")
	if err := os.WriteFile(bin, []byte("not a program"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := New(bin).ConvertCtx(context.Background(), "vmdk", "qcow2", "a.vmdk", "a.qcow2")
	if !ErrIsLaunch(err) {
		t.Fatalf("Expected a launch error, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	f := stub.New(t, 0)

	v, err := New(f.Bin).Version(context.Background())
	if err != nil {
		t.Fatal("Failed to get version:", err)
	}

	if v != stub.VersionOutput {
		t.Fatalf("Unexpected version output: %q", v)
	}
}
