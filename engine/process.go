// Package engine runs an external inference worker as a child process.
// Requests and replies are msgpack documents framed by a 4 byte big endian
// length.
package engine

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/yixinin/camsight/config"
	"github.com/yixinin/camsight/detect"
	"github.com/yixinin/camsight/stderr"
)

var (
	ErrNoCommand = errors.New("engine command not configured")
	ErrClosed    = errors.New("engine closed")
)

const maxFrame = 64 << 20

type request struct {
	Inputs map[string]detect.Tensor `msgpack:"inputs"`
}

type reply struct {
	Outputs map[string]detect.Tensor `msgpack:"outputs"`
	Error   string                   `msgpack:"error,omitempty"`
}

// Process implements detect.Engine. One request is in flight at a time; a
// worker that fails or times out is killed and restarted on the next Run.
type Process struct {
	command string
	args    []string
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func NewProcess(cfg config.EngineConfig) *Process {
	return &Process{
		command: cfg.Command,
		args:    cfg.Args,
		timeout: cfg.Timeout,
	}
}

func (p *Process) Run(ctx context.Context, inputs map[string]detect.Tensor) (map[string]detect.Tensor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if err := p.start(); err != nil {
		return nil, err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	type result struct {
		rep reply
		err error
	}
	var ch = make(chan result, 1)
	stdin, stdout := p.stdin, p.stdout
	go func() {
		var r result
		if r.err = writeFrame(stdin, request{Inputs: inputs}); r.err == nil {
			r.err = readFrame(stdout, &r.rep)
		}
		ch <- r
	}()

	select {
	case <-ctx.Done():
		p.kill()
		return nil, stderr.Wrap(ctx.Err())
	case r := <-ch:
		if r.err != nil {
			p.kill()
			return nil, stderr.Wrap(r.err)
		}
		if r.rep.Error != "" {
			return nil, stderr.New(r.rep.Error)
		}
		return r.rep.Outputs, nil
	}
}

func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.kill()
	return nil
}

func (p *Process) start() error {
	if p.cmd != nil {
		return nil
	}
	if p.command == "" {
		return ErrNoCommand
	}
	cmd := exec.Command(p.command, p.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return stderr.Wrap(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return stderr.Wrap(err)
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return stderr.Wrap(err)
	}
	if err := cmd.Start(); err != nil {
		return stderr.Wrap(err)
	}
	logrus.WithField("pid", cmd.Process.Pid).Infof("engine %s started", p.command)

	go func() {
		sc := bufio.NewScanner(errPipe)
		for sc.Scan() {
			logrus.WithField("pid", cmd.Process.Pid).Debug(sc.Text())
		}
	}()

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	return nil
}

func (p *Process) kill() {
	if p.cmd == nil {
		return
	}
	cmd := p.cmd
	p.cmd, p.stdin, p.stdout = nil, nil, nil

	_ = cmd.Process.Kill()
	go func() {
		err := cmd.Wait()
		logrus.WithField("pid", cmd.Process.Pid).Debugf("engine exited:%v", err)
	}()
}

func writeFrame(w io.Writer, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	var head [4]byte
	binary.BigEndian.PutUint32(head[:], uint32(len(data)))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readFrame(r io.Reader, v any) error {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(head[:])
	if n > maxFrame {
		return errors.New("engine reply too large")
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	return msgpack.Unmarshal(data, v)
}
