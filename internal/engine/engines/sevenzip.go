package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/unarc/unarc/internal/engine"
	"go.uber.org/zap"
)

const (
	sevenZipName = "7zip"

	defaultTimeout = 5 * time.Minute
)

// binaryCandidates are probed on PATH when no explicit binary is configured.
// Covers p7zip (7z/7za) and the official 7-Zip Linux port (7zz).
var binaryCandidates = []string{"7z", "7za", "7zz"}

type SevenZipConfig struct {
	// Binary overrides the executable to invoke.
	Binary string

	// Timeout bounds one extraction attempt.
	Timeout time.Duration
}

// SevenZip invokes the 7-Zip command line tool. It is the primary engine:
// format-aware, battle-tested, and the only one trusted with every format
// 7-Zip supports.
type SevenZip struct {
	logger  *zap.Logger
	binary  string
	timeout time.Duration
}

func NewSevenZip(logger *zap.Logger, cfg SevenZipConfig) *SevenZip {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SevenZip{
		logger:  logger,
		binary:  cfg.Binary,
		timeout: timeout,
	}
}

func (e *SevenZip) Name() string {
	return sevenZipName
}

// resolveBinary finds the 7z executable. Resolution happens per call rather
// than at construction so a missing binary surfaces as a classified
// extraction failure, which is what triggers the fallback engine.
func (e *SevenZip) resolveBinary() (string, error) {
	if e.binary != "" {
		path, err := exec.LookPath(e.binary)
		if err != nil {
			return "", engine.Errorf(engine.ClassEngineUnavailable, sevenZipName, "configured binary %q not found: %w", e.binary, err)
		}
		return path, nil
	}
	for _, candidate := range binaryCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", engine.Errorf(engine.ClassEngineUnavailable, sevenZipName, "no 7-Zip binary found (tried %s)", strings.Join(binaryCandidates, ", "))
}

func (e *SevenZip) Extract(ctx context.Context, req engine.Request) error {
	binary, err := e.resolveBinary()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// -y answers prompts, -bso0/-bsp0 silence the output and progress
	// streams so only diagnostics reach us. The -p switch is always passed,
	// even empty, so 7z never blocks waiting for a password on a tty.
	args := []string{"x", req.Archive, "-o" + req.Dest, "-y", "-bso0", "-bsp0", "-p" + req.Password}
	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("invoking 7zip",
		zap.String("binary", binary),
		zap.String("archive", req.Archive),
		zap.String("dest", req.Dest),
		zap.Bool("password", req.Password != ""),
		zap.Duration("timeout", e.timeout),
	)
	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	e.logger.Debug("7zip finished",
		zap.String("archive", req.Archive),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", duration),
	)

	if runErr == nil {
		return nil
	}

	if errors.Is(runErr, exec.ErrNotFound) {
		return engine.Errorf(engine.ClassEngineUnavailable, sevenZipName, "binary %s not invokable: %w", binary, runErr)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return engine.Errorf(engine.ClassOther, sevenZipName, "extraction timed out after %s", e.timeout)
	}

	diag := strings.TrimSpace(stderr.String() + "\n" + stdout.String())
	return engine.NewError(classifyDiagnostics(diag), sevenZipName,
		fmt.Errorf("exit code %d: %s", exitCode, firstDiagnosticLine(diag)))
}

// classifyDiagnostics maps 7-Zip's diagnostic text onto the failure
// taxonomy. 7z does not expose structured error codes for these cases, so
// text matching is the contract.
func classifyDiagnostics(diag string) engine.FailureClass {
	lower := strings.ToLower(diag)
	switch {
	case strings.Contains(lower, "wrong password"),
		strings.Contains(lower, "enter password"),
		strings.Contains(lower, "cannot open encrypted archive"),
		strings.Contains(lower, "encrypted"):
		return engine.ClassWrongPassword
	case strings.Contains(lower, "unsupported method"),
		strings.Contains(lower, "unsupported compression"),
		strings.Contains(lower, "cannot open the file as archive"),
		strings.Contains(lower, "is not supported"):
		return engine.ClassUnsupportedFormat
	case strings.Contains(lower, "crc failed"),
		strings.Contains(lower, "data error"),
		strings.Contains(lower, "headers error"),
		strings.Contains(lower, "unexpected end of"),
		strings.Contains(lower, "is not archive"):
		return engine.ClassCorruptArchive
	default:
		return engine.ClassOther
	}
}

func firstDiagnosticLine(diag string) string {
	for _, line := range strings.Split(diag, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "7-Zip") {
			continue
		}
		return line
	}
	return "no diagnostic output"
}
