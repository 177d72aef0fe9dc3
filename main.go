package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/diamondburned/vmdk2qcow2/internal/config"
	"github.com/diamondburned/vmdk2qcow2/internal/osutil"
	"github.com/diamondburned/vmdk2qcow2/internal/telemetry"
	"github.com/diamondburned/vmdk2qcow2/internal/telemetry/fallback"
	"github.com/diamondburned/vmdk2qcow2/internal/telemetry/influx"
	"github.com/diamondburned/vmdk2qcow2/qemuimg"
	"github.com/diamondburned/vmdk2qcow2/qemuimg/version"
	"github.com/diamondburned/vmdk2qcow2/qemuimg/vmdk"
	"github.com/spf13/pflag"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Exit codes. A conversion that qemu-img fails exits with qemu-img's own code.
const (
	ExitSuccess = 0
	ExitGeneral = 1
	ExitUsage   = 1
	ExitLaunch  = 127 // qemu-img could not be started
)

func init() {
	log.SetFlags(0)
}

func main() {
	os.Exit(run(os.Args, os.Environ(), os.Stdout, os.Stderr))
}

type options struct {
	src     string
	dst     string
	qemuImg string
	mirror  string
	verbose bool
	version bool
}

var errMissing = errors.New("both --src and --dst are required")

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	var opts options

	fs := pflag.NewFlagSet(filepath.Base(args[0]), pflag.ContinueOnError)
	fs.SetOutput(ioutil.Discard)
	fs.Usage = func() {}
	fs.SortFlags = false

	fs.StringVarP(&opts.src, "src", "s", "", "source vmdk file")
	fs.StringVarP(&opts.dst, "dst", "d", "", "destination qcow2 file")
	fs.StringVar(&opts.qemuImg, "qemu-img", "", "path to qemu-img (env VMDK2QCOW2_QEMU_IMG, default "+qemuimg.DefaultBin+")")
	fs.StringVar(&opts.mirror, "mirror", "", "also place a copy of the qcow2 file in this directory (env VMDK2QCOW2_MIRROR)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log conversion timings")
	fs.BoolVar(&opts.version, "version", false, "print version information and exit")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, fs, err
	}

	if fs.NArg() > 0 {
		return nil, fs, fmt.Errorf("unexpected arguments: %q", fs.Args())
	}

	if !opts.version && (opts.src == "" || opts.dst == "") {
		return nil, fs, errMissing
	}

	return &opts, fs, nil
}

func printUsage(w io.Writer, name string, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s -s <src.vmdk> -d <dst.qcow2>\n\n", name)
	fmt.Fprintln(w, "Convert a vmdk disk image to qcow2 using qemu-img.")
	fmt.Fprintln(w)
	fmt.Fprint(w, fs.FlagUsages())
}

// run converts once and returns the exit code.
func run(args, environ []string, stdout, stderr io.Writer) int {
	logger := log.New(stderr, "", 0)
	name := filepath.Base(args[0])

	opts, fs, err := parseFlags(args)
	switch {
	case errors.Is(err, pflag.ErrHelp):
		printUsage(stdout, name, fs)
		return ExitSuccess
	case errors.Is(err, errMissing):
		printUsage(stderr, name, fs)
		return ExitUsage
	case err != nil:
		fmt.Fprintln(stderr, err)
		printUsage(stderr, name, fs)
		return ExitUsage
	}

	cfg, err := config.Load(environ)
	if err != nil {
		logger.Println("[config]", err)
		return ExitGeneral
	}

	if opts.qemuImg != "" {
		cfg.QemuImg = opts.qemuImg
	}
	if opts.mirror != "" {
		cfg.Mirror = opts.mirror
	}

	c := qemuimg.New(cfg.QemuImg)
	c.Stdout = stdout

	ctx := context.Background()

	if opts.version {
		return printVersion(ctx, c, stdout, logger)
	}

	t := newTelemeter(cfg.Influx, opts.verbose, logger)
	defer t.Close()

	if code := convert(ctx, c, t, logger, opts.src, opts.dst); code != ExitSuccess {
		return code
	}

	if cfg.Mirror != "" {
		p, err := osutil.Mirror(ctx, opts.dst, cfg.Mirror)
		if err != nil {
			logger.Println("[mirror]", err)
			return ExitGeneral
		}

		if opts.verbose {
			logger.Println("[mirror] copied to", p)
		}
	}

	return ExitSuccess
}

func convert(ctx context.Context, c *qemuimg.Converter, t telemetry.Telemeter, logger *log.Logger, src, dst string) int {
	var now = time.Now()

	r, err := vmdk.ConvertCtx(ctx, c, src, dst)
	code := exitCodeFor(err)

	var extras = telemetry.Extras{
		"src":       src,
		"dst":       dst,
		"bin":       c.Bin,
		"exit_code": code,
	}
	if r != nil {
		extras["runtime"] = r.Runtime.Milliseconds()
	}

	t.WriteDuration(time.Since(now), "convert", extras)

	if err != nil {
		t.Error(err)
		logger.Println("[qemu-img]", err)
		return code
	}

	if r.Output != "" {
		logger.Print("[qemu-img] ", r.Output)
	}

	return ExitSuccess
}

func printVersion(ctx context.Context, c *qemuimg.Converter, stdout io.Writer, logger *log.Logger) int {
	fmt.Fprintln(stdout, "vmdk2qcow2", Version)

	out, err := c.Version(ctx)
	if err != nil {
		logger.Println("[qemu-img]", err)
		return exitCodeFor(err)
	}

	i, err := version.Parse(out)
	if err != nil {
		logger.Println("[qemu-img]", err)
		return ExitGeneral
	}

	fmt.Fprintf(stdout, "qemu-img %s (%s)\n", i.Version, c.Bin)
	return ExitSuccess
}

// newTelemeter never fails: an unreachable InfluxDB falls back to logging so
// that metrics never hold up a conversion.
func newTelemeter(cfg influx.Config, verbose bool, logger *log.Logger) telemetry.Telemeter {
	if cfg.Address != "" {
		t, err := influx.NewClient(cfg)
		if err == nil {
			return t
		}
		logger.Println("[telemetry]", err)
		return fallback.New(logger)
	}

	if !verbose {
		logger = log.New(ioutil.Discard, "", 0)
	}

	return fallback.New(logger)
}

// exitCodeFor returns the process exit code for the error of a qemu-img run.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if qemuimg.ErrIsLaunch(err) {
		return ExitLaunch
	}

	var imgErr *qemuimg.Error
	if errors.As(err, &imgErr) {
		// Killed by a signal has no exit code of its own.
		if code := imgErr.ExitCode(); code > 0 {
			return code
		}
	}

	return ExitGeneral
}
