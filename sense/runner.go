package sense

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/ober/internal/fs"
)

// stderrTail bounds how much of the program's stderr is kept for errors.
const stderrTail = 4 << 10

// Runner invokes the external clustering program:
//
//	<command> <args...> --graph <in> --output <tmp> --num_workers <n>
//
// The program writes to a temp file inside the target cluster version, which
// is renamed into place only after a clean exit.
type Runner struct {
	command string
	args    []string
	opts    options
}

// NewRunner returns a runner for command with leading args, for example
// NewRunner("java", []string{"-jar", "cw.jar"}).
func NewRunner(command string, args []string, opts ...Option) *Runner {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Runner{command: command, args: args, opts: o}
}

// RunResult describes a committed run.
type RunResult struct {
	ClusterVersion int
	Path           string
	Duration       time.Duration
}

// Run clusters the graph at graphPath and commits the result into clusters.
// Each line the program prints on stdout is logged at info level.
func (r *Runner) Run(ctx context.Context, graphPath string, clusters *ClusterStore) (RunResult, error) {
	start := time.Now()
	if _, err := r.opts.fs.Stat(graphPath); err != nil {
		return RunResult{}, fmt.Errorf("sense: graph: %w", err)
	}

	v, err := clusters.allocate(r.opts.clusterVersion)
	if err != nil {
		return RunResult{}, err
	}
	tmp := filepath.Join(filepath.Dir(clusters.Path(v)), "."+ClustersFile+"-run"+fs.TempSuffix)
	_ = r.opts.fs.Remove(tmp)

	if err := r.exec(ctx, graphPath, tmp); err != nil {
		_ = r.opts.fs.Remove(tmp)
		return RunResult{}, err
	}
	if ok, err := fs.Exists(r.opts.fs, tmp); err != nil || !ok {
		return RunResult{}, fmt.Errorf("%w: %s", ErrNoOutput, tmp)
	}

	path, err := clusters.commit(v, tmp)
	if err != nil {
		_ = r.opts.fs.Remove(tmp)
		return RunResult{}, err
	}
	res := RunResult{ClusterVersion: v, Path: path, Duration: time.Since(start)}
	r.opts.logger.Info("clusters committed",
		"path", path,
		"cluster_version", v,
		"graph", graphPath,
		"duration", res.Duration,
	)
	return res, nil
}

func (r *Runner) exec(ctx context.Context, graphPath, output string) error {
	args := append(append([]string(nil), r.args...),
		"--graph", graphPath,
		"--output", output,
		"--num_workers", strconv.Itoa(r.opts.workers),
	)
	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Env = append(os.Environ(), r.opts.env...)

	var stderr tailBuffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	r.opts.logger.Debug("starting clusterer", "command", r.command, "args", args)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("sense: start %s: %w", r.command, err)
	}

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		r.opts.logger.Info("clusterer", "line", sc.Text())
	}
	scanErr := sc.Err()
	if scanErr != nil {
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("sense: %s %v failed: %w\n%s", r.command, r.args, err, msg)
		}
		return fmt.Errorf("sense: %s %v failed: %w", r.command, r.args, err)
	}
	if scanErr != nil {
		return fmt.Errorf("sense: read clusterer output: %w", scanErr)
	}
	return nil
}

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > stderrTail {
		p = p[len(p)-stderrTail:]
	}
	if over := t.buf.Len() + len(p) - stderrTail; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
