package analysis

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Runner executes an external command and returns its combined stderr.
type Runner func(ctx context.Context, name string, args ...string) (stderr string, err error)

// ExecRunner runs the command with exec.CommandContext.
func ExecRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// Rasterizer converts the first page of a PDF into a PNG with pdftoppm.
type Rasterizer struct {
	Bin      string
	DPI      int
	ScaleTo  int
	MinBytes int64
	WorkDir  string
	Run      Runner
}

// NewRasterizer returns a Rasterizer that shells out via ExecRunner.
func NewRasterizer(bin string, dpi, scaleTo int, minBytes int64, workDir string) *Rasterizer {
	if bin == "" {
		bin = "pdftoppm"
	}
	return &Rasterizer{Bin: bin, DPI: dpi, ScaleTo: scaleTo, MinBytes: minBytes, WorkDir: workDir, Run: ExecRunner}
}

// FirstPage renders page 1 of pdf and returns PNG bytes. Every failure
// wraps ErrConversion. The workspace is removed on all paths.
func (r *Rasterizer) FirstPage(ctx context.Context, pdf []byte) (png []byte, err error) {
	ws, err := NewWorkspace(r.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("%w: workspace: %v", ErrConversion, err)
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			log.Warn().Str("component", "rasterizer").Err(cerr).Str("dir", ws.Dir).Msg("workspace cleanup failed")
		}
	}()

	in := ws.Path("input.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write input: %v", ErrConversion, err)
	}
	outBase := ws.Path("page")
	args := []string{
		"-png", "-f", "1", "-l", "1",
		"-r", strconv.Itoa(r.DPI),
		"-scale-to", strconv.Itoa(r.ScaleTo),
		"-singlefile",
		in, outBase,
	}

	run := r.Run
	if run == nil {
		run = ExecRunner
	}
	if stderr, err := run(ctx, r.Bin, args...); err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrConversion, r.Bin, err, strings.TrimSpace(stderr))
	}

	out, err := os.ReadFile(outBase + ".png")
	if err != nil {
		return nil, fmt.Errorf("%w: missing output: %v", ErrConversion, err)
	}
	if int64(len(out)) < r.MinBytes {
		return nil, fmt.Errorf("%w: output too small (%d bytes)", ErrConversion, len(out))
	}
	return out, nil
}
