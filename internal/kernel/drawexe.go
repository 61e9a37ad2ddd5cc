package kernel

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshforge/cad-engine/internal/config"
	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/observability"
)

// DrawexeSession scripts one long-lived DRAWEXE process over stdin. Draw's
// Tcl interpreter is single-threaded, so ops are serialized behind a mutex.
// Every command is wrapped in a catch with a sentinel marker so the stdout
// scanner can tell where one command's output ends.
type DrawexeSession struct {
	cfg    config.KernelConfig
	logger *observability.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *limitedBuffer
	lines  chan string

	exited  chan struct{}
	exitErr error

	mu       sync.Mutex
	seq      uint64
	shapeSeq uint64
	closed   bool
}

// NewDrawexeSession locates the DRAWEXE binary, starts it headless, loads
// the MODELING and DATAEXCHANGE plugins and probes readiness.
func NewDrawexeSession(cfg config.KernelConfig, logger *observability.Logger) (*DrawexeSession, error) {
	path, err := findDrawexe(cfg.DrawexePath)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, "-v")
	stderrBuf := &limitedBuffer{max: 8192}
	cmd.Stderr = stderrBuf

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("drawexe stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("drawexe stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start drawexe: %w", err)
	}

	s := &DrawexeSession{
		cfg:    cfg,
		logger: logger,
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderrBuf,
		lines:  make(chan string, 64),
		exited: make(chan struct{}),
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := stripPrompt(scanner.Text())
			if line == "" {
				continue
			}
			s.lines <- line
		}
		close(s.lines)
	}()

	go func() {
		s.exitErr = cmd.Wait()
		close(s.exited)
	}()

	startupTimeout := cfg.StartupTimeout
	if startupTimeout <= 0 {
		startupTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if _, err := s.eval(ctx, "pload MODELING DATAEXCHANGE"); err != nil {
		s.Close()
		if tail := s.stderrTail(10); tail != "" {
			return nil, fmt.Errorf("drawexe plugin load failed: %w\n\ndrawexe output:\n%s", err, tail)
		}
		return nil, fmt.Errorf("drawexe plugin load failed: %w", err)
	}

	logger.Info().Str("binary", path).Msg("drawexe session ready")
	return s, nil
}

// findDrawexe searches for the DRAWEXE binary: explicit override first,
// then PATH, then known install locations.
func findDrawexe(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("drawexe not found at configured path %s: %w", explicit, err)
		}
		return explicit, nil
	}

	exe := "DRAWEXE"
	if runtime.GOOS == "windows" {
		exe = "DRAWEXE.exe"
	}

	if path, err := exec.LookPath(exe); err == nil {
		return path, nil
	}

	for _, candidate := range []string{
		"/usr/local/bin/DRAWEXE",
		"/usr/bin/DRAWEXE",
		"/opt/occt/bin/DRAWEXE",
		"/opt/opencascade/bin/DRAWEXE",
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf(`DRAWEXE not found

The conversion service drives OCCT's Draw Test Harness as its geometry
kernel. Install Open CASCADE Technology and either put DRAWEXE on PATH
or set DRAWEXE_PATH (kernel.drawexe_path) to the binary.

For deployments without OCCT, set kernel.backend: stub`)
}

// eval runs one Tcl script inside the session and returns everything the
// command printed before its completion marker. Each op is bounded by the
// configured op timeout on top of whatever deadline the caller carries.
func (s *DrawexeSession) eval(ctx context.Context, script string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrSessionClosed
	}

	if s.cfg.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.OpTimeout)
		defer cancel()
	}

	s.seq++
	marker := fmt.Sprintf("__cad_%d", s.seq)
	wrapped := fmt.Sprintf(
		"if {[catch {%s} __r]} {puts \"ERR %s $__r\"} else {puts \"OK %s $__r\"}\n",
		script, marker, marker)

	if _, err := io.WriteString(s.stdin, wrapped); err != nil {
		return "", fmt.Errorf("write to drawexe: %w", err)
	}

	var out []string
	for {
		select {
		case <-ctx.Done():
			return strings.Join(out, "\n"), ctx.Err()
		case <-s.exited:
			return strings.Join(out, "\n"), fmt.Errorf("drawexe exited (%v): %w", s.exitErr, ErrSessionClosed)
		case line, ok := <-s.lines:
			if !ok {
				return strings.Join(out, "\n"), fmt.Errorf("drawexe stdout closed: %w", ErrSessionClosed)
			}
			if rest, found := strings.CutPrefix(line, "OK "+marker); found {
				if r := strings.TrimSpace(rest); r != "" {
					out = append(out, r)
				}
				return strings.Join(out, "\n"), nil
			}
			if rest, found := strings.CutPrefix(line, "ERR "+marker); found {
				return strings.Join(out, "\n"), fmt.Errorf("drawexe: %s", strings.TrimSpace(rest))
			}
			out = append(out, line)
		}
	}
}

// Load reads a STEP or IGES file into a fresh shape variable. A reader
// failure means the exchange status never reached done; a transferred
// shape without faces counts as null.
func (s *DrawexeSession) Load(ctx context.Context, path string, format domain.Format) (*Shape, error) {
	name := fmt.Sprintf("sh_%d", atomic.AddUint64(&s.shapeSeq, 1))

	readCmd := "testreadstep"
	if format == domain.FormatIGES {
		readCmd = "testreadiges"
	}

	out, err := s.eval(ctx, fmt.Sprintf("%s {%s} %s", readCmd, path, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusNotDone, err)
	}
	roots := parseRootCount(out)

	nb, err := s.eval(ctx, "nbshapes "+name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNullShape, err)
	}
	faces := parseShapeCount(nb, "FACE")
	if faces == 0 {
		s.eval(ctx, "unset "+name)
		return nil, ErrNullShape
	}

	s.logger.Debug().
		Str("shape", name).
		Int("roots", roots).
		Int("faces", faces).
		Msg("exchange file loaded")

	return &Shape{Name: name, Roots: roots, Faces: faces}, nil
}

// Tessellate runs incremental meshing over the shape and reads the
// triangulation totals back. The completion flag combines the meshing
// status with a non-empty triangulation.
func (s *DrawexeSession) Tessellate(ctx context.Context, shape *Shape, linear, angular float64) (*TessellationInfo, error) {
	if shape == nil || shape.Name == "" {
		return nil, ErrNullShape
	}

	// incmesh takes the angular deflection in degrees.
	degrees := angular * 180 / math.Pi
	out, err := s.eval(ctx, fmt.Sprintf("incmesh %s %g -a %g -parallel", shape.Name, linear, degrees))
	if err != nil {
		return nil, err
	}
	status, hasStatus := parseMeshStatus(out)

	tri, err := s.eval(ctx, "trinfo "+shape.Name)
	if err != nil {
		return nil, err
	}

	info := &TessellationInfo{
		Triangles: parseTriangleCount(tri),
		Nodes:     parseNodeCount(tri),
	}
	info.Complete = info.Triangles > 0 && (!hasStatus || status == "NoError")
	return info, nil
}

// WriteSTL serializes the shape's triangulation to outputPath. Callers
// verify the artifact on disk.
func (s *DrawexeSession) WriteSTL(ctx context.Context, shape *Shape, outputPath string, ascii bool) error {
	if shape == nil || shape.Name == "" {
		return ErrNullShape
	}

	// writestl mode flag: 1 ascii, 0 binary.
	mode := "0"
	if ascii {
		mode = "1"
	}
	_, err := s.eval(ctx, fmt.Sprintf("writestl %s {%s} %s", shape.Name, outputPath, mode))
	return err
}

// Release drops the shape variable from the session.
func (s *DrawexeSession) Release(ctx context.Context, shape *Shape) error {
	if shape == nil || shape.Name == "" {
		return nil
	}
	_, err := s.eval(ctx, "unset "+shape.Name)
	return err
}

// Healthy probes the Tcl interpreter with a round trip.
func (s *DrawexeSession) Healthy(ctx context.Context) error {
	out, err := s.eval(ctx, "puts alive")
	if err != nil {
		return err
	}
	if !strings.Contains(out, "alive") {
		return fmt.Errorf("unexpected probe output %q", out)
	}
	return nil
}

// Engine names the backing kernel.
func (s *DrawexeSession) Engine() string { return "opencascade" }

// Close asks the interpreter to exit, then escalates to kill.
func (s *DrawexeSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	io.WriteString(s.stdin, "exit\n")
	s.stdin.Close()
	s.mu.Unlock()

	select {
	case <-s.exited:
		return nil
	case <-time.After(5 * time.Second):
	}

	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	select {
	case <-s.exited:
	case <-time.After(2 * time.Second):
	}
	return nil
}

// stderrTail returns the last n lines captured from the process stderr.
func (s *DrawexeSession) stderrTail(n int) string {
	tail := strings.TrimSpace(s.stderr.String())
	if tail == "" {
		return ""
	}
	lines := strings.Split(tail, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// limitedBuffer is a thread-safe buffer keeping only the last max bytes.
// Captures subprocess stderr without unbounded growth.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.buf.Write(p)
	if b.buf.Len() > b.max {
		data := b.buf.Bytes()
		b.buf.Reset()
		b.buf.Write(data[len(data)-b.max:])
	}
	return n, err
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
