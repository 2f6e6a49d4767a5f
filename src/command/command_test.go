package command

import (
	"errors"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flashtony2005/corda/src/common"
	"github.com/stretchr/testify/require"
)

func shell(t *testing.T, script string, opts ...Option) *Command {
	opts = append([]Option{
		WithLogger(common.NewTestEntry(t, "command")),
		WithGracePeriod(500 * time.Millisecond),
	}, opts...)
	return New("sh", []string{"-c", script}, opts...)
}

type lineRecorder struct {
	sync.Mutex
	lines []string
}

func (r *lineRecorder) record(line string) {
	r.Lock()
	defer r.Unlock()
	r.lines = append(r.lines, line)
}

func (r *lineRecorder) get() []string {
	r.Lock()
	defer r.Unlock()
	return append([]string(nil), r.lines...)
}

func TestMissingProgramFailsFast(t *testing.T) {
	c := New("definitely-not-a-real-program-xyz", nil, WithTimeout(time.Minute))

	start := time.Now()
	err := c.Start()

	require.Error(t, err)
	require.True(t, errors.Is(err, ErrProgramNotFound), "unexpected error: %v", err)
	require.Less(t, int64(time.Since(start)), int64(5*time.Second))
	require.False(t, c.WaitFor())
	require.True(t, c.Exited())
}

func TestMissingJarFailsFast(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "network-bootstrapper.jar")
	c := NewTool("sh", jar, []string{"--dir", "."})

	err := c.Start()
	require.True(t, errors.Is(err, ErrProgramNotFound), "unexpected error: %v", err)
}

func TestLinesDeliveredInOrder(t *testing.T) {
	c := shell(t, "echo one; echo two 1>&2; echo three")

	rec := &lineRecorder{}
	c.Subscribe(rec.record)

	require.NoError(t, c.Start())
	require.True(t, c.WaitFor())
	require.Equal(t, 0, c.ExitCode())
	require.Equal(t, []string{"one", "two", "three"}, rec.get())
}

func TestNonZeroExit(t *testing.T) {
	c := shell(t, "echo failing; exit 3")

	err := c.Run()
	require.True(t, errors.Is(err, ErrCommandFailed), "unexpected error: %v", err)
	require.Equal(t, 3, c.ExitCode())
	require.False(t, c.WaitFor())
}

func TestTimeoutKillsProcess(t *testing.T) {
	c := shell(t, "sleep 30", WithTimeout(200*time.Millisecond))

	start := time.Now()
	require.NoError(t, c.Start())
	require.False(t, c.WaitFor())
	require.True(t, c.TimedOut())
	require.Less(t, int64(time.Since(start)), int64(10*time.Second))
}

func TestWatchInterruptsOnMarker(t *testing.T) {
	c := shell(t, "echo starting; echo 'java.lang.IllegalStateException: boom'; sleep 30", WithTimeout(time.Minute))

	start := time.Now()
	err := RunWatched(c, ContainsMarker("Exception"))

	require.True(t, errors.Is(err, ErrCommandFailed), "unexpected error: %v", err)
	require.Contains(t, err.Error(), "IllegalStateException")
	require.True(t, c.Interrupted())
	require.Less(t, int64(time.Since(start)), int64(10*time.Second))
}

func TestWatchIgnoresCleanOutput(t *testing.T) {
	c := shell(t, "echo all good")

	w := Watch(c, ContainsMarker("Exception"))
	require.NoError(t, c.Run())

	_, matched := w.Matched()
	require.False(t, matched)
}

func TestCustomPredicate(t *testing.T) {
	c := shell(t, "echo 'ERROR: disk full'; exit 0")

	err := RunWatched(c, func(line string) bool {
		return strings.HasPrefix(line, "ERROR:")
	})
	require.Error(t, err)
}

func TestOutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "logs", "out.log")
	c := shell(t, "echo first; echo second", WithOutputFile(out))

	require.NoError(t, c.Run())

	data, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(data))
}

func TestExpectReadyLine(t *testing.T) {
	c := shell(t, "echo booting; echo 'Node started up and registered in 3.2 sec'; sleep 30")
	ready := Expect(c, ContainsMarker("started up and registered"))

	require.NoError(t, c.Start())
	require.True(t, AwaitLine(c, ready, 5*time.Second))

	c.Interrupt()
	require.False(t, c.WaitFor())
}

func TestAwaitLineProcessExits(t *testing.T) {
	c := shell(t, "echo booting; exit 1")
	ready := Expect(c, ContainsMarker("started up"))

	require.NoError(t, c.Start())
	require.False(t, AwaitLine(c, ready, 5*time.Second))
}

func TestStartTwice(t *testing.T) {
	c := shell(t, "true")

	require.NoError(t, c.Start())
	require.True(t, errors.Is(c.Start(), ErrAlreadyStarted))
	require.True(t, c.WaitFor())
}

func TestWaitForNotStarted(t *testing.T) {
	c := shell(t, "true")
	require.False(t, c.WaitFor())
	require.Equal(t, 0, c.PID())

	// no-ops before start
	c.Interrupt()
	c.Kill()
	require.False(t, c.Interrupted())
}

func TestInterruptAfterEarlyInterrupt(t *testing.T) {
	c := shell(t, "sleep 30", WithTimeout(time.Minute))
	c.Interrupt()

	start := time.Now()
	require.NoError(t, c.Start())
	c.Interrupt()

	require.False(t, c.WaitFor())
	require.True(t, c.Interrupted())
	require.False(t, c.TimedOut())
	require.Less(t, int64(time.Since(start)), int64(10*time.Second))
}
