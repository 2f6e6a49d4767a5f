package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/flashtony2005/corda/src/command"
	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/logscan"
	"github.com/spf13/cobra"
)

// node log file written by node.ProcessNode
const nodeLogFile = "node-stdout.log"

var (
	logNode   string
	logFollow bool
	logErrors bool
)

// NewLogCmd returns the command showing the logs of a session.
func NewLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the log of a node, or the errors of a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := _config.Network.TargetDir
			out := cmd.OutOrStdout()

			if logErrors {
				return printErrors(out, dir, _config.Network.ErrorMarker)
			}

			if logNode == "" {
				return fmt.Errorf("--node is required unless --errors is set")
			}

			path := filepath.Join(dir, logNode, "logs", nodeLogFile)

			if logFollow {
				return followLog(out, path)
			}

			return printLog(out, path)
		},
	}

	AddLogFlags(cmd)

	return cmd
}

// AddLogFlags adds flags to the Log command
func AddLogFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&_config.Network.TargetDir, "dir", _config.Network.TargetDir, "Session directory")
	cmd.Flags().StringVar(&logNode, "node", "", "Name of the node")
	cmd.Flags().BoolVarP(&logFollow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().BoolVar(&logErrors, "errors", false, "Print the error marker lines of every file of the session")
	cmd.Flags().StringVar(&_config.Network.ErrorMarker, "error-marker", _config.Network.ErrorMarker, "Output substring flagging a failure")
}

func printLog(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// followLog runs tail until it is interrupted.
func followLog(w io.Writer, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	tail := command.New("tail", []string{"-n", "+1", "-f", path},
		command.WithLogger(_config.Network.Logger()))
	tail.Subscribe(func(line string) {
		fmt.Fprintln(w, line)
	})

	if err := tail.Start(); err != nil {
		return err
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	defer signal.Stop(signalChan)

	select {
	case <-signalChan:
		tail.Interrupt()
	case <-tail.Done():
	}

	tail.WaitFor()

	return nil
}

func printErrors(w io.Writer, dir string, marker string) error {
	matches, err := logscan.New(dir).Skip(config.DefaultJournalDir).Find(logscan.MarkerPattern(marker))
	if err != nil {
		return err
	}

	for _, m := range matches {
		rel, err := filepath.Rel(dir, m.File)
		if err != nil {
			rel = m.File
		}
		fmt.Fprintf(w, "%s:%d: %s\n", rel, m.Line, m.Text)
	}

	return nil
}
