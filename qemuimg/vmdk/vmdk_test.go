package vmdk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/diamondburned/vmdk2qcow2/internal/stub"
	"github.com/diamondburned/vmdk2qcow2/qemuimg"
	"github.com/google/go-cmp/cmp"
)

func TestMain(m *testing.M) {
	stub.Main()
	os.Exit(m.Run())
}

func TestArgs(t *testing.T) {
	got := Args("disk1.vmdk", "disk1.qcow2")
	want := []string{"convert", "-f", "vmdk", "-O", "qcow2", "disk1.vmdk", "disk1.qcow2"}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Unexpected args (-want +got):\n%s", diff)
	}
}

func TestConvertCtx(t *testing.T) {
	var paths = []string{
		"disk1",
		"my disk",
		"$(touch pwned)",
		"a'b\"c",
		"*.vmdk | cat",
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			f := stub.New(t, 0)

			dir := t.TempDir()
			src := filepath.Join(dir, p+".vmdk")
			dst := filepath.Join(dir, p+".qcow2")

			if _, err := ConvertCtx(context.Background(), qemuimg.New(f.Bin), src, dst); err != nil {
				t.Fatal("Failed to convert:", err)
			}

			if diff := cmp.Diff(Args(src, dst), f.Args(t)); diff != "" {
				t.Fatalf("Unexpected args (-want +got):\n%s", diff)
			}

			if _, err := os.Stat("pwned"); err == nil {
				t.Fatal("Path was expanded by a shell.")
			}
		})
	}
}
