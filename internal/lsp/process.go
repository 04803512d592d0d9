package lsp

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

// Process is a spawned language server executable.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	exitCh chan error
}

// StartProcess launches a server binary with the project path as working
// directory. When logStderr is set, stderr lines are forwarded to the given
// logger at debug level.
func StartProcess(args []string, projectPath string, env map[string]string, logStderr bool, log zerolog.Logger) (*Process, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("start process: empty command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = projectPath
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	var stderr io.ReadCloser
	if logStderr {
		stderr, err = cmd.StderrPipe()
		if err != nil {
			stdin.Close()
			stdout.Close()
			return nil, fmt.Errorf("stderr pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		exitCh: make(chan error, 1),
	}

	if stderr != nil {
		go forwardStderr(stderr, log)
	}
	go p.wait()

	return p, nil
}

// wait reaps the process and delivers its exit error.
func (p *Process) wait() {
	err := p.cmd.Wait()
	select {
	case p.exitCh <- err:
	default:
	}
}

// forwardStderr copies server stderr lines into the host log.
func forwardStderr(r io.ReadCloser, log zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Debug().Msg(scanner.Text())
	}
}

// Channel wraps the process stdio pipes as a message channel. The returned
// channel owns the pipes.
func (p *Process) Channel() *Channel {
	return NewChannel(p.stdout, p.stdin, p.stdin)
}

// Exited delivers the process exit error once the process terminates.
func (p *Process) Exited() <-chan error {
	return p.exitCh
}

// Terminate kills the process. Best effort.
func (p *Process) Terminate() {
	p.stdin.Close()
	p.stdout.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// DialEndpoint connects to a server listening on a fixed TCP endpoint and
// wraps the connection as a message channel. An empty host means localhost.
func DialEndpoint(host string, port int) (*Channel, error) {
	if host == "" {
		host = "localhost"
	}
	conn, err := net.Dial("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return nil, fmt.Errorf("dial endpoint: %w", err)
	}
	return NewChannel(conn, conn, conn), nil
}
