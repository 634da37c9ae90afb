package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/openclaude/agentcore/internal/config"
)

// timeoutExitCode is the sentinel exit code reported when a command is
// killed for exceeding its deadline (§4.3 step 3d, §6: exit code 124).
const timeoutExitCode = 124

// killTreeGrace is how long the shell tool waits after SIGTERM before
// escalating to SIGKILL across the process tree (§4.3 step 3b: "5
// seconds").
const killTreeGrace = 5 * time.Second

// BashTool runs a shell command in its own process group, capturing output
// into a bounded rolling buffer and guaranteeing the whole process subtree
// is gone before returning (§4.3 "the hardest subsystem").
type BashTool struct {
	Limits config.Limits
}

func (t *BashTool) Name() string { return "bash" }

func (t *BashTool) Description() string {
	return "Run a shell command with a timeout, returning combined stdout/stderr."
}

func (t *BashTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command line to execute.",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"description": "Wall-clock timeout in seconds.",
			},
		},
		"required": []string{"command"},
	}
}

// rollingBuffer is a bounded byte sink: once full, the earliest bytes are
// discarded to make room for new ones, and the full stream is additionally
// spooled to disk so nothing is lost (§4.3 step 2). Writes are guarded by a
// mutex held only for the duration of one write, since producers run on
// their own goroutine relative to whatever reads the buffer back out.
type rollingBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	overflow  bool
	spool     *os.File
	spoolPath string
}

func newRollingBuffer(limit int) *rollingBuffer {
	return &rollingBuffer{limit: limit}
}

func (r *rollingBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.spool == nil {
		f, err := os.CreateTemp("", "agentcore-bash-*.log")
		if err == nil {
			r.spool = f
			r.spoolPath = f.Name()
		}
	}
	if r.spool != nil {
		r.spool.Write(p)
	}

	r.buf.Write(p)
	if r.buf.Len() > r.limit {
		excess := r.buf.Len() - r.limit
		r.buf.Next(excess)
		r.overflow = true
	}
	return len(p), nil
}

func (r *rollingBuffer) snapshot() (data string, overflowed bool, spoolPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String(), r.overflow, r.spoolPath
}

// close releases the spool file. Its path is only handed back to the
// caller when the rolling buffer overflowed (§4.3 step 2); otherwise the
// spool was pure insurance against an overflow that never happened, and
// keeping it around would leak a temp file per bash call (§3: "all
// transient resources ... are released on tool-result emission").
func (r *rollingBuffer) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spool != nil {
		r.spool.Close()
		if !r.overflow {
			os.Remove(r.spoolPath)
		}
	}
}

func (t *BashTool) Invoke(ctx context.Context, input json.RawMessage, cx ExecContext) (ToolResult, error) {
	var payload struct {
		Command string `json:"command"`
		Timeout *int   `json:"timeout"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return ToolResult{IsError: true, Output: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if payload.Command == "" {
		return ToolResult{IsError: true, Output: "command is required"}, nil
	}

	limits := t.Limits
	if limits.DefaultShellTimeoutSeconds == 0 {
		limits = config.DefaultLimits()
	}
	timeoutSeconds := limits.DefaultShellTimeoutSeconds
	if payload.Timeout != nil && *payload.Timeout > 0 {
		timeoutSeconds = *payload.Timeout
	}
	if limits.MaxShellTimeoutSeconds > 0 && timeoutSeconds > limits.MaxShellTimeoutSeconds {
		timeoutSeconds = limits.MaxShellTimeoutSeconds
	}
	bufferLimit := limits.RollingBufferBytes
	if bufferLimit <= 0 {
		bufferLimit = 1 << 20
	}

	cmd := exec.Command("/bin/bash", "-lc", "set -e\n"+payload.Command)
	cmd.Dir = cx.CWD
	cmd.Stdin = nil
	// Own process group so the whole subtree can be signaled as a unit
	// (§4.3 step 1).
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	out := newRollingBuffer(bufferLimit)
	defer out.close()
	cmd.Stdout = out
	cmd.Stderr = out
	if cx.Progress != nil {
		cmd.Stdout = io.MultiWriter(out, cx.Progress)
		cmd.Stderr = cmd.Stdout
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ToolResult{
			IsError:  true,
			Output:   fmt.Sprintf("spawn failed: %v", err),
			Metadata: map[string]any{"error_kind": "SpawnFailed"},
		}, nil
	}

	deadline := time.NewTimer(time.Duration(timeoutSeconds) * time.Second)
	defer deadline.Stop()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var (
		waitErr   error
		timedOut  bool
		cancelled bool
	)
	select {
	case waitErr = <-done:
	case <-deadline.C:
		timedOut = true
		killProcessTree(cmd.Process.Pid)
		waitErr = <-done
	case <-ctx.Done():
		cancelled = true
		killProcessTree(cmd.Process.Pid)
		waitErr = <-done
	}
	elapsed := time.Since(start)

	output, overflowed, spoolPath := out.snapshot()
	exitCode := 0
	switch {
	case timedOut, cancelled:
		exitCode = timeoutExitCode
	case waitErr != nil:
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}

	truncatedOutput, bodyTruncated, _ := truncateOutput(output)
	metadata := map[string]any{
		"exit_code":   exitCode,
		"timed_out":   timedOut,
		"truncated":   overflowed || bodyTruncated,
		"wall_time_s": elapsed.Seconds(),
	}
	if overflowed && spoolPath != "" {
		metadata["spool_path"] = spoolPath
	}
	if cancelled {
		metadata["cancelled"] = true
	}

	return ToolResult{
		Output:   truncatedOutput,
		IsError:  exitCode != 0,
		Metadata: metadata,
	}, nil
}

// killProcessTree implements §4.3 steps 3a-3c: SIGTERM the process group,
// wait up to killTreeGrace, then walk the live process table rooted at pid
// and SIGKILL every descendant deepest-first before the root itself.
func killProcessTree(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGTERM)

	if waitForExit(pid, killTreeGrace) {
		return
	}

	for _, p := range descendantsDeepestFirst(int32(pid)) {
		_ = p.Kill()
	}
	if root, err := process.NewProcess(int32(pid)); err == nil {
		_ = root.Kill()
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// waitForExit polls until pid's process group leader is gone or the grace
// period elapses.
func waitForExit(pid int, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(pid, 0); err != nil {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return syscall.Kill(pid, 0) != nil
}

// descendantsDeepestFirst walks the live process table rooted at pid and
// returns every descendant ordered so the deepest nodes come first (§4.3
// step 3c).
func descendantsDeepestFirst(pid int32) []*process.Process {
	root, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	var order []*process.Process
	var walk func(p *process.Process, depth int) int
	depths := map[int32]int{}
	walk = func(p *process.Process, depth int) int {
		children, err := p.Children()
		if err != nil {
			return depth
		}
		maxDepth := depth
		for _, c := range children {
			d := walk(c, depth+1)
			if d > maxDepth {
				maxDepth = d
			}
			order = append(order, c)
			depths[c.Pid] = d
		}
		return maxDepth
	}
	walk(root, 0)

	// Stable sort by depth descending so deeper descendants are signaled
	// before their ancestors.
	for i := 1; i < len(order); i++ {
		j := i
		for j > 0 && depths[order[j-1].Pid] < depths[order[j].Pid] {
			order[j-1], order[j] = order[j], order[j-1]
			j--
		}
	}
	return order
}
