package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConsole() (console, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return console{stdout: &stdout, stderr: &stderr}, &stdout, &stderr
}

func writeImage(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, "in.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestSanitizeCommand(t *testing.T) {
	assert.Equal(t, "render", sanitizeCommand("render"))
	assert.Equal(t, "bad__cmd_", sanitizeCommand("bad;\ncmd$"))
}

func TestRunUsage(t *testing.T) {
	con, stdout, stderr := testConsole()

	assert.Equal(t, 1, run(context.Background(), nil, con))
	assert.Contains(t, stderr.String(), "Usage: openroom-render")

	assert.Equal(t, 0, run(context.Background(), []string{"help"}, con))
	assert.Contains(t, stdout.String(), "Commands:")

	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"explode"}, con))
	assert.Contains(t, stderr.String(), "Unknown command: explode")
}

func TestRenderToStdout(t *testing.T) {
	t.Setenv("VIPS_ENABLED", "false")
	path := writeImage(t, t.TempDir(), 800, 600)
	con, stdout, stderr := testConsole()

	code := run(context.Background(), []string{"render", "-cpu", "-max", "480", path}, con)
	require.Equal(t, 0, code, stderr.String())

	img, err := png.Decode(stdout)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 480, 360), img.Bounds())
}

func TestRenderWithRecipeToFile(t *testing.T) {
	t.Setenv("VIPS_ENABLED", "false")
	dir := t.TempDir()
	path := writeImage(t, dir, 300, 200)
	recipePath := filepath.Join(dir, "edit.json")
	require.NoError(t, os.WriteFile(recipePath, []byte(`{"globals":{"saturation":-100}}`), 0o644))
	out := filepath.Join(dir, "out.png")
	con, _, stderr := testConsole()

	code := run(context.Background(), []string{"render", "-cpu", "-recipe", recipePath, "-o", out, path}, con)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stderr.String(), "Wrote "+out)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	r, g, b, _ := img.At(150, 100).RGBA()
	assert.InDelta(t, r>>8, g>>8, 1, "desaturated")
	assert.InDelta(t, g>>8, b>>8, 1, "desaturated")
}

func TestRenderRefusesTerminal(t *testing.T) {
	path := writeImage(t, t.TempDir(), 64, 64)
	con, stdout, stderr := testConsole()
	con.stdoutTTY = true

	assert.Equal(t, 1, run(context.Background(), []string{"render", "-cpu", path}, con))
	assert.Contains(t, stderr.String(), "terminal")
	assert.Zero(t, stdout.Len())
}

func TestRenderErrors(t *testing.T) {
	t.Setenv("VIPS_ENABLED", "false")
	dir := t.TempDir()
	con, _, stderr := testConsole()

	assert.Equal(t, 1, run(context.Background(), []string{"render", "-cpu"}, con))
	assert.Contains(t, stderr.String(), "expected exactly one image path")

	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"render", "-cpu", "-recipe", filepath.Join(dir, "none.json"), "x.png"}, con))
	assert.Contains(t, stderr.String(), "failed to read recipe")

	junk := filepath.Join(dir, "junk.png")
	require.NoError(t, os.WriteFile(junk, []byte("junk"), 0o644))
	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"render", "-cpu", junk}, con))
	assert.Contains(t, stderr.String(), "failed to decode image")
}

func TestThumbnailPlaceholder(t *testing.T) {
	t.Setenv("VIPS_ENABLED", "false")
	junk := filepath.Join(t.TempDir(), "junk.nef")
	require.NoError(t, os.WriteFile(junk, []byte("junk"), 0o644))
	con, stdout, stderr := testConsole()

	code := run(context.Background(), []string{"thumbnail", "-cpu", junk}, con)
	require.Equal(t, 0, code, stderr.String())

	img, err := png.Decode(stdout)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 360, 240), img.Bounds())
}
