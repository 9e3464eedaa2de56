package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// stopGrace is how long an interrupted container gets before it is killed.
const stopGrace = 10 * time.Second

// Volume is a host directory bind-mounted into the container.
type Volume struct {
	From string
	To   string
}

// Spec describes one container invocation.
type Spec struct {
	Image      string
	Command    []string
	Volumes    []Volume
	WorkingDir string
	User       string
	Env        map[string]string
	Privileged bool
	Stdin      []byte
}

// Result is what a finished container produced. A non-zero ExitCode is a
// result, not an error.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes containers.
type Runner interface {
	Run(ctx context.Context, spec Spec) (*Result, error)
}

// Docker runs containers with the docker CLI.
type Docker struct {
	Binary string
	Stdout io.Writer
	Stderr io.Writer
	DryRun bool
}

func NewDocker(binary string, stdout, stderr io.Writer, dryRun bool) *Docker {
	if binary == "" {
		binary = "docker"
	}
	return &Docker{
		Binary: binary,
		Stdout: stdout,
		Stderr: stderr,
		DryRun: dryRun,
	}
}

// Run starts the container, feeds it spec.Stdin and waits for it to exit.
// Cancelling ctx interrupts the docker client, which forwards the signal to
// the container, and kills it after a grace period.
func (d *Docker) Run(ctx context.Context, spec Spec) (*Result, error) {
	if spec.Image == "" {
		return nil, fmt.Errorf("container spec has no image")
	}

	args := d.Args(spec)
	if d.DryRun {
		if d.Stdout != nil {
			fmt.Fprintf(d.Stdout, "    %s %s\n", d.Binary, strings.Join(args, " "))
		}
		return &Result{}, nil
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.Binary, args...)
	cmd.Stdin = bytes.NewReader(spec.Stdin)
	cmd.Stdout = tee(&stdout, d.Stdout)
	cmd.Stderr = tee(&stderr, d.Stderr)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = stopGrace

	err := cmd.Run()
	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("container %s interrupted: %w", spec.Image, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return nil, fmt.Errorf("failed to run container %s: %w", spec.Image, err)
}

// Args builds the arguments passed to the docker binary.
func (d *Docker) Args(spec Spec) []string {
	args := []string{"run", "-i", "--rm", fmt.Sprintf("--privileged=%t", spec.Privileged)}
	for _, v := range spec.Volumes {
		args = append(args, "-v", v.From+":"+v.To)
	}
	if spec.WorkingDir != "" {
		args = append(args, "-w", spec.WorkingDir)
	}
	if spec.User != "" {
		args = append(args, "-u", spec.User)
	}

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+spec.Env[k])
	}

	args = append(args, spec.Image)
	return append(args, spec.Command...)
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}
