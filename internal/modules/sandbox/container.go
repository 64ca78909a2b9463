package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// runStatus - итог запуска контейнера.
type runStatus int

const (
	runOK runStatus = iota
	runTimeLimit
	runMemoryLimit
)

type runResult struct {
	Status    runStatus
	Stdout    string
	Stderr    string
	ExitCode  int64
	Truncated bool
	Duration  time.Duration
}

func (h *Handler) pullImage(ctx context.Context) error {
	reader, err := h.cli.ImagePull(ctx, h.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", h.cfg.Image, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("consume pull output for %s: %w", h.cfg.Image, err)
	}
	return nil
}

// run создает одноразовый контейнер, передает stdin, ждет завершения и
// удаляет контейнер. Корневая ФС контейнера доступна только на чтение.
func (h *Handler) run(ctx context.Context, command []string, stdin []byte) (*runResult, error) {
	containerID, cleanup, err := h.createContainer(ctx, command)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	attach, err := h.cli.ContainerAttach(ctx, containerID, container.AttachOptions{Stream: true, Stdin: true})
	if err != nil {
		return nil, fmt.Errorf("attach container: %w", err)
	}
	defer attach.Close()

	start := time.Now()
	if err := h.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	if attach.Conn != nil {
		if _, err := io.Copy(attach.Conn, bytes.NewReader(stdin)); err != nil {
			return nil, fmt.Errorf("write stdin: %w", err)
		}
		if closer, ok := attach.Conn.(interface{ CloseWrite() error }); ok {
			_ = closer.CloseWrite()
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.cfg.TimeLimit)
	status, err := h.waitForExit(waitCtx, containerID)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return h.handleTimeLimit(containerID, start)
		}
		return nil, err
	}

	inspectCtx := ctx
	if inspectCtx.Err() != nil {
		inspectCtx = context.Background()
	}
	inspect, err := h.cli.ContainerInspect(inspectCtx, containerID)
	if err != nil {
		return nil, fmt.Errorf("inspect container: %w", err)
	}

	stdout, stderr, truncated, err := h.fetchLogs(inspectCtx, containerID)
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}

	result := &runResult{
		Status:    runOK,
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCode:  status.StatusCode,
		Truncated: truncated,
		Duration:  time.Since(start),
	}
	if inspect.ContainerJSONBase != nil && inspect.State != nil && inspect.State.OOMKilled {
		result.Status = runMemoryLimit
	}
	return result, nil
}

func (h *Handler) createContainer(ctx context.Context, cmd []string) (string, func(), error) {
	pids := h.cfg.PidsLimit
	hostConfig := &container.HostConfig{
		NetworkMode:    "none",
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{h.cfg.Workdir: fmt.Sprintf("rw,noexec,nosuid,nodev,size=%dm", h.cfg.ScratchMB)},
		Resources: container.Resources{
			NanoCPUs:   h.cfg.NanoCPUs,
			Memory:     h.cfg.MemoryLimitBytes,
			MemorySwap: h.cfg.MemoryLimitBytes,
			PidsLimit:  &pids,
		},
	}

	resp, err := h.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image:           h.cfg.Image,
			Cmd:             cmd,
			User:            h.cfg.User,
			AttachStdout:    true,
			AttachStderr:    true,
			AttachStdin:     true,
			OpenStdin:       true,
			StdinOnce:       true,
			WorkingDir:      h.cfg.Workdir,
			NetworkDisabled: true,
		},
		hostConfig,
		nil,
		nil,
		"",
	)
	if err != nil {
		return "", nil, fmt.Errorf("create container: %w", err)
	}

	cleanup := func() {
		if err := h.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); err != nil {
			h.logger.Warn("remove sandbox container failed", "container", resp.ID, "err", err)
		}
	}
	return resp.ID, cleanup, nil
}

func (h *Handler) handleTimeLimit(containerID string, start time.Time) (*runResult, error) {
	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()

	timeout := 0
	if err := h.cli.ContainerStop(stopCtx, containerID, container.StopOptions{Timeout: &timeout}); err != nil && !client.IsErrNotFound(err) {
		return nil, fmt.Errorf("stop container after time limit: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelWait()
	status, waitErr := h.waitForExit(waitCtx, containerID)
	if waitErr != nil && !errors.Is(waitErr, context.DeadlineExceeded) && !client.IsErrNotFound(waitErr) {
		return nil, fmt.Errorf("wait for container after time limit: %w", waitErr)
	}

	stdout, stderr, truncated, err := h.fetchLogs(context.Background(), containerID)
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}

	exitCode := int64(-1)
	if status != nil {
		exitCode = status.StatusCode
	}
	return &runResult{
		Status:    runTimeLimit,
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCode:  exitCode,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func (h *Handler) waitForExit(ctx context.Context, containerID string) (*container.WaitResponse, error) {
	statusCh, errCh := h.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container error: %s", status.Error.Message)
		}
		return &status, nil
	case err := <-errCh:
		return nil, fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for container: %w", ctx.Err())
	}
}

func (h *Handler) fetchLogs(ctx context.Context, containerID string) (stdout, stderr string, truncated bool, err error) {
	logs, err := h.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", false, err
	}
	defer logs.Close()

	stdoutBuf := &cappedBuffer{max: h.cfg.MaxOutputBytes}
	stderrBuf := &cappedBuffer{max: h.cfg.MaxOutputBytes}
	if _, err := stdcopy.StdCopy(stdoutBuf, stderrBuf, logs); err != nil {
		return "", "", false, err
	}
	return stdoutBuf.String(), stderrBuf.String(), stdoutBuf.truncated || stderrBuf.truncated, nil
}

// cappedBuffer хранит не больше max байт и запоминает факт усечения.
type cappedBuffer struct {
	bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.max <= 0 {
		return b.Buffer.Write(p)
	}
	room := b.max - b.Len()
	if room <= 0 {
		b.truncated = len(p) > 0 || b.truncated
		return len(p), nil
	}
	if len(p) > room {
		b.truncated = true
		_, _ = b.Buffer.Write(p[:room])
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
