package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

type fakeDockerClient struct {
	mu          sync.Mutex
	nextID      int
	imagePulls  []string
	createCalls []containerCreateCall
	waits       []waitCall
	logs        []byte
	oomKilled   bool
	createErr   error
	stopCalls   []string
	removeCalls []string
	attachConn  *fakeConn
	closed      bool
}

type containerCreateCall struct {
	id         string
	config     *container.Config
	hostConfig *container.HostConfig
}

type waitCall struct {
	status *container.WaitResponse
	err    error
	block  bool
}

func newFakeDockerClient() *fakeDockerClient {
	return &fakeDockerClient{attachConn: &fakeConn{}}
}

func (f *fakeDockerClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	f.imagePulls = append(f.imagePulls, ref)
	f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	id := fmt.Sprintf("container-%d", f.nextID)
	f.nextID++
	f.createCalls = append(f.createCalls, containerCreateCall{id: id, config: config, hostConfig: hostConfig})
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.mu.Lock()
	f.removeCalls = append(f.removeCalls, containerID)
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachConn == nil {
		return types.HijackedResponse{}, errors.New("attach not configured")
	}
	return types.HijackedResponse{Conn: f.attachConn}, nil
}

func (f *fakeDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return nil
}

func (f *fakeDockerClient) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)

	f.mu.Lock()
	if len(f.waits) == 0 {
		f.mu.Unlock()
		return statusCh, errCh
	}
	call := f.waits[0]
	f.waits = f.waits[1:]
	f.mu.Unlock()

	if call.block {
		return statusCh, errCh
	}
	if call.status != nil {
		statusCh <- *call.status
	}
	if call.err != nil {
		errCh <- call.err
	}
	return statusCh, errCh
}

func (f *fakeDockerClient) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			State: &types.ContainerState{OOMKilled: f.oomKilled},
		},
	}, nil
}

func (f *fakeDockerClient) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	data := f.logs
	f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeDockerClient) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	f.mu.Lock()
	f.stopCalls = append(f.stopCalls, containerID)
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) exits(code int64) {
	f.mu.Lock()
	f.waits = append(f.waits, waitCall{status: &container.WaitResponse{StatusCode: code}})
	f.mu.Unlock()
}

func (f *fakeDockerClient) hangs(codeAfterStop int64) {
	f.mu.Lock()
	f.waits = append(f.waits,
		waitCall{block: true},
		waitCall{status: &container.WaitResponse{StatusCode: codeAfterStop}},
	)
	f.mu.Unlock()
}

func (f *fakeDockerClient) setLogs(stdout, stderr string) {
	var buf bytes.Buffer
	if stdout != "" {
		w := stdcopy.NewStdWriter(&buf, stdcopy.Stdout)
		_, _ = w.Write([]byte(stdout))
	}
	if stderr != "" {
		w := stdcopy.NewStdWriter(&buf, stdcopy.Stderr)
		_, _ = w.Write([]byte(stderr))
	}
	f.mu.Lock()
	f.logs = buf.Bytes()
	f.mu.Unlock()
}

type fakeConn struct {
	bytes.Buffer
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) CloseWrite() error {
	return c.Close()
}

func (c *fakeConn) LocalAddr() net.Addr              { return fakeAddr("local") }
func (c *fakeConn) RemoteAddr() net.Addr             { return fakeAddr("remote") }
func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

type fakeAddr string

func (a fakeAddr) Network() string { return string(a) }
func (a fakeAddr) String() string  { return string(a) }
