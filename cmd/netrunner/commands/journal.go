package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/journal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewJournalCmd returns the command printing the journal of a session.
func NewJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the journal of a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := _config.Network.Logger()
			logger.Logger.SetLevel(config.LogLevel(_config.Network.LogLevel))

			return printJournal(cmd.OutOrStdout(), _config.Network.TargetDir, logger)
		},
	}

	AddJournalFlags(cmd)

	return cmd
}

// AddJournalFlags adds flags to the Journal command
func AddJournalFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&_config.Network.TargetDir, "dir", _config.Network.TargetDir, "Session directory")
	cmd.Flags().StringVar(&_config.Network.LogLevel, "log", "warn", "debug, info, warn, error, fatal, panic")
}

func printJournal(w io.Writer, dir string, logger *logrus.Entry) error {
	entries, err := journal.Read(filepath.Join(dir, config.DefaultJournalDir), logger)
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Fprintf(w, "%4d  %s  %-9s  %-24s  %s\n",
			e.Seq,
			e.At().Format(time.RFC3339Nano),
			e.Kind,
			e.Subject,
			e.Detail,
		)
	}

	return nil
}
