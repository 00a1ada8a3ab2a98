package bridge

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// processExitTimeout is how long Close waits for the host to exit after its stdin
// was closed before killing it.
const processExitTimeout = 5 * time.Second

type processConn struct {
	stdout   io.Reader
	stdin    io.WriteCloser
	cmd      *exec.Cmd
	readDone chan struct{}
	once     sync.Once
}

func (p *processConn) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if err != nil {
		p.once.Do(func() { close(p.readDone) })
	}
	return n, err
}

func (p *processConn) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Close closes the host's stdin and waits for it to exit. Wait closes stdout, so
// it only runs once reading has stopped.
func (p *processConn) Close() error {
	closeErr := p.stdin.Close()

	select {
	case <-p.readDone:
	case <-time.After(processExitTimeout):
		_ = p.cmd.Process.Kill()
		<-p.readDone
	}

	if err := p.cmd.Wait(); err != nil {
		return errors.Wrap(err, "host process exited with error")
	}
	return closeErr
}

// DialProcess starts a host executable and returns a stream channel over its stdio.
// The host's stderr is passed through to ours.
func DialProcess(ctx context.Context, name string, args ...string) (*StreamChannel, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open host stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open host stdout")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start host %s", name)
	}

	conn := &processConn{stdout: stdout, stdin: stdin, cmd: cmd, readDone: make(chan struct{})}
	return NewStreamChannel(conn, nil), nil
}
