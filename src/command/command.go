package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrProgramNotFound = errors.New("command: program not found")
	ErrCommandFailed   = errors.New("command: failed")
	ErrAlreadyStarted  = errors.New("command: already started")
)

// drainTimeout bounds how long a finished process' output is drained when a
// detached child still holds the pipe open.
const drainTimeout = 250 * time.Millisecond

// Option configures a Command.
type Option func(*Command)

// WithDir sets the working directory of the process.
func WithDir(dir string) Option {
	return func(c *Command) { c.dir = dir }
}

// WithTimeout sets the hard timeout after which the process is killed. Zero
// means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Command) { c.timeout = d }
}

// WithGracePeriod sets how long an interrupted process is given before it is
// killed.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Command) { c.grace = d }
}

// WithLogger sets the logger receiving lifecycle events and output lines.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Command) { c.logger = logger }
}

// WithOutputFile appends every output line to the given file.
func WithOutputFile(path string) Option {
	return func(c *Command) { c.outputFile = path }
}

// Command is a single invocation of an external program.
type Command struct {
	program    string
	args       []string
	requires   []string
	dir        string
	timeout    time.Duration
	grace      time.Duration
	outputFile string
	logger     *logrus.Entry

	mu          sync.Mutex
	subscribers []func(string)
	cmd         *exec.Cmd
	started     bool
	interrupted bool
	timedOut    bool
	err         error
	exitCode    int

	interruptOnce sync.Once
	done          chan struct{}
}

// New returns a Command for program and args. Nothing is launched until Start.
func New(program string, args []string, opts ...Option) *Command {
	c := &Command{
		program:  program,
		args:     append([]string(nil), args...),
		grace:    5 * time.Second,
		exitCode: -1,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	c.logger = c.logger.WithField("program", filepath.Base(c.program))

	return c
}

// NewTool returns a Command running tool with args. Tools packaged as jar
// files are run with javaPath -jar. The tool file must exist when the command
// is started.
func NewTool(javaPath string, tool string, args []string, opts ...Option) *Command {
	if strings.HasSuffix(tool, ".jar") {
		c := New(javaPath, append([]string{"-jar", tool}, args...), opts...)
		c.requires = append(c.requires, tool)
		return c
	}
	return New(tool, args, opts...)
}

// String returns the command line.
func (c *Command) String() string {
	return strings.Join(append([]string{c.program}, c.args...), " ")
}

// Subscribe registers fn to receive every output line produced from now on.
// fn is called from the reader goroutine and must not block.
func (c *Command) Subscribe(fn func(line string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Start launches the process. A missing program or required file fails with
// ErrProgramNotFound without waiting for the timeout.
func (c *Command) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	if err := c.start(); err != nil {
		c.err = err
		close(c.done)
		return err
	}

	return nil
}

func (c *Command) start() error {
	for _, f := range c.requires {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrProgramNotFound, f, err)
		}
	}

	path, err := exec.LookPath(c.program)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProgramNotFound, c.program, err)
	}

	var out io.WriteCloser
	if c.outputFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.outputFile), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(c.outputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		out = f
	}

	read, write, err := os.Pipe()
	if err != nil {
		if out != nil {
			out.Close()
		}
		return err
	}

	cmd := exec.Command(path, c.args...)
	cmd.Dir = c.dir
	cmd.Stdout = write
	cmd.Stderr = write
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		read.Close()
		write.Close()
		if out != nil {
			out.Close()
		}
		return fmt.Errorf("starting %s: %w", c.program, err)
	}

	// the child holds its own copy
	write.Close()

	c.cmd = cmd

	c.logger.WithFields(logrus.Fields{
		"pid":  cmd.Process.Pid,
		"dir":  c.dir,
		"args": c.args,
	}).Debug("Started")

	readerDone := make(chan struct{})
	go c.readOutput(read, out, readerDone)

	var timer *time.Timer
	if c.timeout > 0 {
		timer = time.AfterFunc(c.timeout, c.expire)
	}

	go c.wait(read, readerDone, timer)

	return nil
}

func (c *Command) readOutput(read io.Reader, out io.WriteCloser, readerDone chan struct{}) {
	defer close(readerDone)
	if out != nil {
		defer out.Close()
	}

	reader := bufio.NewReader(read)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			if out != nil {
				io.WriteString(out, line+"\n")
			}
			c.dispatch(line)
		}
		if err != nil {
			return
		}
	}
}

func (c *Command) dispatch(line string) {
	c.mu.Lock()
	subscribers := make([]func(string), len(c.subscribers))
	copy(subscribers, c.subscribers)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(line)
	}
}

func (c *Command) wait(read *os.File, readerDone chan struct{}, timer *time.Timer) {
	err := c.cmd.Wait()

	if timer != nil {
		timer.Stop()
	}

	select {
	case <-readerDone:
	case <-time.After(drainTimeout):
		read.Close()
		<-readerDone
	}
	read.Close()

	code := c.cmd.ProcessState.ExitCode()

	c.mu.Lock()
	c.err = err
	c.exitCode = code
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"exit":        code,
		"interrupted": c.Interrupted(),
		"timed_out":   c.TimedOut(),
	}).Debug("Exited")

	close(c.done)
}

func (c *Command) expire() {
	c.mu.Lock()
	c.timedOut = true
	c.mu.Unlock()

	c.logger.WithField("timeout", c.timeout).Warn("Command timed out")
	c.Kill()
}

// Interrupt asks the process to stop and kills it if it is still running
// after the grace period. It never blocks, and does nothing before Start.
func (c *Command) Interrupt() {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()

	if cmd == nil {
		return
	}

	c.interruptOnce.Do(func() {
		c.mu.Lock()
		c.interrupted = true
		c.mu.Unlock()

		if c.Exited() {
			return
		}

		c.logger.Debug("Interrupting")
		if err := interruptProcess(cmd.Process); err != nil {
			c.logger.WithError(err).Debug("Interrupt")
		}

		go func() {
			select {
			case <-c.done:
			case <-time.After(c.grace):
				c.Kill()
			}
		}()
	})
}

// Kill terminates the process immediately.
func (c *Command) Kill() {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()

	if cmd == nil || c.Exited() {
		return
	}

	c.logger.Debug("Killing")
	if err := killProcess(cmd.Process); err != nil {
		c.logger.WithError(err).Debug("Kill")
	}
}

// WaitFor blocks until the process exits or its timeout elapses. It returns
// true only if the process exited by itself, in time, with status zero.
func (c *Command) WaitFor() bool {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()

	if !started {
		return false
	}

	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err == nil && !c.timedOut && !c.interrupted
}

// Run starts the command and waits for it, returning ErrCommandFailed if it
// did not succeed.
func (c *Command) Run() error {
	if err := c.Start(); err != nil {
		return err
	}
	if !c.WaitFor() {
		return c.failure()
	}
	return nil
}

func (c *Command) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.timedOut:
		return fmt.Errorf("%w: %s timed out after %s", ErrCommandFailed, c.program, c.timeout)
	case c.interrupted:
		return fmt.Errorf("%w: %s was interrupted", ErrCommandFailed, c.program)
	case c.err != nil:
		return fmt.Errorf("%w: %s: %v", ErrCommandFailed, c.program, c.err)
	default:
		return fmt.Errorf("%w: %s", ErrCommandFailed, c.program)
	}
}

// Done returns a channel closed once the process has exited and its output
// has been drained, or once Start has failed.
func (c *Command) Done() <-chan struct{} {
	return c.done
}

// Exited reports whether the process has finished.
func (c *Command) Exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Err returns the error the process exited with.
func (c *Command) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ExitCode returns the exit status, or -1 if the process has not exited or
// was terminated by a signal.
func (c *Command) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}

// PID returns the process id, or 0 if the process was never started.
func (c *Command) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Interrupted reports whether Interrupt was called.
func (c *Command) Interrupted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupted
}

// TimedOut reports whether the process was killed by its timeout.
func (c *Command) TimedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timedOut
}
