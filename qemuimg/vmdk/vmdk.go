package vmdk

import (
	"context"

	"github.com/diamondburned/vmdk2qcow2/qemuimg"
)

const (
	InputFormat  = "vmdk"
	OutputFormat = "qcow2"
)

// Args returns the qemu-img argument vector that converts the VMDK image src
// into the QCOW2 image dst.
func Args(src, dst string) []string {
	return qemuimg.ConvertArgs(InputFormat, OutputFormat, src, dst)
}

// ConvertCtx converts the VMDK image at src into a QCOW2 image at dst using c.
// Whether an existing dst is overwritten is up to qemu-img.
func ConvertCtx(ctx context.Context, c *qemuimg.Converter, src, dst string) (*qemuimg.Result, error) {
	return c.ConvertCtx(ctx, InputFormat, OutputFormat, src, dst)
}
