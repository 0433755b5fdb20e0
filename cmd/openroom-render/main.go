package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"openroom/internal/adjust"
	"openroom/internal/decode"
	"openroom/internal/gpu"
	"openroom/internal/logging"
	"openroom/internal/preview"
	"openroom/internal/recipe"
	"openroom/internal/resize"
)

var errTerminal = errors.New("refusing to write PNG data to a terminal; use -o or redirect stdout")

// console is where a command writes. stdoutTTY is true when stdout is an
// interactive terminal.
type console struct {
	stdout    io.Writer
	stderr    io.Writer
	stdoutTTY bool
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	con := console{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdoutTTY: term.IsTerminal(int(os.Stdout.Fd())),
	}
	os.Exit(run(ctx, os.Args[1:], con))
}

func run(ctx context.Context, args []string, con console) int {
	if len(args) < 1 {
		printUsage(con.stderr)
		return 1
	}

	command, rest := args[0], args[1:]
	var err error
	switch command {
	case "render":
		err = renderCommand(ctx, rest, con)
	case "thumbnail":
		err = thumbnailCommand(ctx, rest, con)
	case "gpus":
		err = gpusCommand(rest, con)
	case "help", "-h", "--help":
		printUsage(con.stdout)
		return 0
	default:
		fmt.Fprintf(con.stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(con.stderr)
		return 1
	}

	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(con.stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// sanitizeCommand returns a safe representation of a command string for display.
// Any character that is not alphanumeric, a hyphen, or an underscore becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "openroom image renderer")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: openroom-render <command> [flags] <image>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  render     - Render a preview, optionally with -recipe FILE and -max N")
	fmt.Fprintln(w, "  thumbnail  - Render a 360px thumbnail")
	fmt.Fprintln(w, "  gpus       - List GPU adapters")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -o FILE    - Write PNG to FILE instead of stdout")
	fmt.Fprintln(w, "  -cpu       - Render on the CPU only")
	fmt.Fprintln(w, "  -v         - Verbose logging")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  VIPS_ENABLED - Start libvips for RAW decoding (default: true)")
}

// commonFlags are shared by render and thumbnail.
type commonFlags struct {
	output  string
	cpuOnly bool
	verbose bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.output, "o", "", "write PNG to `file` instead of stdout")
	fs.BoolVar(&c.cpuOnly, "cpu", false, "render on the CPU only")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
}

// parse parses args and returns the single image path.
func parse(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one image path, got %d", fs.Name(), fs.NArg())
	}
	return fs.Arg(0), nil
}

func renderCommand(ctx context.Context, args []string, con console) error {
	var common commonFlags
	var recipePath string
	var maxDimension int

	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(con.stderr)
	common.register(fs)
	fs.StringVar(&recipePath, "recipe", "", "apply the edit recipe in `file` (JSON)")
	fs.IntVar(&maxDimension, "max", preview.DefaultPreviewDimension, "longer side in `pixels`")

	path, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := checkOutput(common.output, con); err != nil {
		return err
	}

	var rec *recipe.EditRecipe
	if recipePath != "" {
		if rec, err = loadRecipe(recipePath); err != nil {
			return err
		}
	}

	svc, closeFn := newService(common)
	defer closeFn()

	data, err := svc.RenderPreview(ctx, path, path, maxDimension, rec)
	if err != nil {
		return err
	}
	return writeOutput(common.output, data, con)
}

func thumbnailCommand(ctx context.Context, args []string, con console) error {
	var common commonFlags

	fs := flag.NewFlagSet("thumbnail", flag.ContinueOnError)
	fs.SetOutput(con.stderr)
	common.register(fs)

	path, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := checkOutput(common.output, con); err != nil {
		return err
	}

	svc, closeFn := newService(common)
	defer closeFn()

	data, err := svc.Thumbnail(ctx, filepath.Base(path), path)
	if err != nil {
		return err
	}
	return writeOutput(common.output, data, con)
}

func gpusCommand(args []string, con console) error {
	fs := flag.NewFlagSet("gpus", flag.ContinueOnError)
	fs.SetOutput(con.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	adapters, err := gpu.EnumerateAdapters()
	if err != nil {
		return fmt.Errorf("failed to enumerate adapters: %w", err)
	}
	if len(adapters) == 0 {
		fmt.Fprintln(con.stdout, "No GPU adapters found")
	}
	for i, a := range adapters {
		fmt.Fprintf(con.stdout, "%d: %s (%s, %s)\n", i, a.Name, a.Backend, a.DeviceType)
	}

	ctx := gpu.NewContext(gpu.OpenHAL)
	defer ctx.Close()
	if err := ctx.Init(); err != nil {
		fmt.Fprintf(con.stdout, "Render device: unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(con.stdout, "Render device: %s\n", ctx.Adapter())
	return nil
}

// newService builds a one-shot service. The returned func releases the GPU
// and libvips.
func newService(common commonFlags) (*preview.Service, func()) {
	if common.verbose {
		logging.SetLevel(logging.LevelDebug)
	} else {
		logging.SetLevel(logging.LevelWarn)
	}

	if vipsEnabled() {
		decode.InitVips()
	}

	gpuCtx := gpu.Disabled("-cpu")
	if !common.cpuOnly {
		gpuCtx = gpu.NewContext(gpu.OpenHAL)
	}

	svc := preview.NewService(decode.Default(), resize.New(gpuCtx), adjust.New(gpuCtx), preview.Options{
		PreviewWorkers:   1,
		ThumbnailWorkers: 1,
		GPU:              gpuCtx,
	})
	return svc, func() {
		gpuCtx.Close()
		decode.ShutdownVips()
	}
}

func vipsEnabled() bool {
	v, err := strconv.ParseBool(os.Getenv("VIPS_ENABLED"))
	if err != nil {
		return true
	}
	return v
}

func loadRecipe(path string) (*recipe.EditRecipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe: %w", err)
	}
	var rec recipe.EditRecipe
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse recipe %s: %w", path, err)
	}
	return &rec, nil
}

func checkOutput(output string, con console) error {
	if output == "" && con.stdoutTTY {
		return errTerminal
	}
	return nil
}

func writeOutput(output string, data []byte, con console) error {
	if output == "" {
		_, err := con.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(con.stderr, "Wrote %s (%d bytes)\n", output, len(data))
	return nil
}
