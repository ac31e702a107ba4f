package invoker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

const outputTailBytes = 2000

var ErrTimeout = errors.New("pipeline script exceeded its deadline")

type Request struct {
	Variant   Variant
	InputPath string
	OutputDir string
	// ExtraArgs override the variant's default args.
	ExtraArgs map[string]string
}

type Result struct {
	Success   bool
	OutputDir string
	Metadata  map[string]any
}

// ScriptError is a non-zero exit of the external process.
type ScriptError struct {
	ExitCode int
	Output   string
	Err      error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("pipeline script failed (exit %d): %v; out=%s", e.ExitCode, e.Err, e.Output)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Invoker runs one pipeline variant against an input file.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

type Config struct {
	RscriptBin string
	Timeout    time.Duration
}

type rscript struct {
	log     *logger.Logger
	bin     string
	timeout time.Duration
}

func NewRscript(log *logger.Logger, cfg Config) Invoker {
	bin := strings.TrimSpace(cfg.RscriptBin)
	if bin == "" {
		bin = "Rscript"
	}
	return &rscript{
		log:     log.With("component", "RscriptInvoker"),
		bin:     bin,
		timeout: cfg.Timeout,
	}
}

func (r *rscript) Invoke(ctx context.Context, req Request) (*Result, error) {
	if req.InputPath == "" || req.OutputDir == "" {
		return nil, fmt.Errorf("invoke %s: input path and output dir are required", req.Variant.Name)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output dir: %w", err)
	}
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	expr := BuildExpression(req)
	cmd := exec.CommandContext(runCtx, r.bin, "--vanilla", "-e", expr)
	cmd.WaitDelay = 10 * time.Second

	start := time.Now()
	r.log.Info("Invoking pipeline script",
		"variant", req.Variant.Name,
		"script", req.Variant.Script,
		"output_dir", req.OutputDir,
	)
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s; out=%s", ErrTimeout, r.timeout, tail(out))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return nil, &ScriptError{ExitCode: code, Output: tail(out), Err: err}
	}

	r.log.Info("Pipeline script finished", "variant", req.Variant.Name, "duration_ms", elapsed.Milliseconds())
	return &Result{
		Success:   true,
		OutputDir: req.OutputDir,
		Metadata: map[string]any{
			"variant":     req.Variant.Name,
			"script":      req.Variant.Script,
			"duration_ms": elapsed.Milliseconds(),
			"output":      tail(out),
		},
	}, nil
}

// BuildExpression renders the R call: source the script, then call its entry point
// with path1, outdir, type and any extra named args in sorted order.
func BuildExpression(req Request) string {
	args := map[string]string{}
	for k, v := range req.Variant.Args {
		args[k] = v
	}
	for k, v := range req.ExtraArgs {
		if strings.TrimSpace(v) != "" {
			args[k] = v
		}
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{
		"path1=" + rString(req.InputPath),
		"outdir=" + rString(req.OutputDir),
		"type=" + rString(req.Variant.Type),
	}
	for _, k := range keys {
		parts = append(parts, k+"="+rString(args[k]))
	}
	return fmt.Sprintf("source(%s); invisible(%s(%s))",
		rString(req.Variant.Script),
		req.Variant.Function,
		strings.Join(parts, ", "),
	)
}

func rString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)
	return "'" + r.Replace(s) + "'"
}

func tail(out []byte) string {
	if len(out) <= outputTailBytes {
		return strings.TrimSpace(string(out))
	}
	return strings.TrimSpace(string(out[len(out)-outputTailBytes:]))
}
