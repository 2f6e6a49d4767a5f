package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flashtony2005/corda/src/common"
	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/journal"
	"github.com/flashtony2005/corda/src/node"
	"github.com/flashtony2005/corda/src/testutil"
	"github.com/stretchr/testify/require"
)

func TestBuilderFromConfig(t *testing.T) {
	c := NewDefaultCLIConfig()
	c.Distribution = DistributionConfig{Version: "4.8", Path: "/opt/corda-4.8"}
	c.Nodes = []NodeConfig{
		{Name: "Notary", Notary: "validating"},
		{Name: "PartyA", Database: "postgres", Currencies: []string{"GBP"}, RPCProxy: true},
		{Name: "PartyB", Distribution: DistributionConfig{Version: "4.10", Type: "authority", Path: "/opt/corda-4.10"}},
	}

	b, err := c.builder()
	require.NoError(t, err)

	topology := b.Topology()
	require.Len(t, topology, 3)

	require.Equal(t, node.ValidatingNotary, topology["Notary"].Notary)
	require.Equal(t, node.H2, topology["Notary"].Database)
	require.Equal(t, "4.8", topology["Notary"].Distribution.Version)

	require.Equal(t, node.Postgres, topology["PartyA"].Database)
	require.Equal(t, []string{"GBP"}, topology["PartyA"].IssuableCurrencies)
	require.True(t, topology["PartyA"].RPCProxy)

	require.Equal(t, node.Authority, topology["PartyB"].Distribution.Type)
	require.Equal(t, "/opt/corda-4.10", topology["PartyB"].Distribution.InstallPath)
}

func TestBuilderRequiresNodes(t *testing.T) {
	c := NewDefaultCLIConfig()
	_, err := c.builder()
	require.Error(t, err)

	c.Nodes = []NodeConfig{{Database: "h2"}}
	_, err = c.builder()
	require.Error(t, err)
}

func TestPrintJournal(t *testing.T) {
	dir := t.TempDir()
	logger := common.NewTestEntry(t, "journal")

	j, err := journal.Open(filepath.Join(dir, config.DefaultJournalDir), "session", logger)
	require.NoError(t, err)
	require.NoError(t, j.Record(journal.KindState, "network", "Created -> Bootstrapped"))
	require.NoError(t, j.Record(journal.KindNode, "PartyA", "running"))
	require.NoError(t, j.Close())

	var out bytes.Buffer
	require.NoError(t, printJournal(&out, dir, logger))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "1 "))
	require.Contains(t, lines[0], "Created -> Bootstrapped")
	require.Contains(t, lines[1], "PartyA")

	require.Error(t, printJournal(&out, t.TempDir(), logger))
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	VersionCmd.SetOutput(&out)
	VersionCmd.Run(VersionCmd, nil)
	require.NotEmpty(t, strings.TrimSpace(out.String()))
}

func TestPrintErrors(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "PartyA", "logs", nodeLogFile), "starting\njava.lang.IllegalStateException: boom\n")
	testutil.WriteFile(t, filepath.Join(dir, "PartyB", "logs", nodeLogFile), "all good\n")

	var out bytes.Buffer
	require.NoError(t, printErrors(&out, dir, "Exception"))
	require.Equal(t,
		filepath.Join("PartyA", "logs", nodeLogFile)+":2: java.lang.IllegalStateException: boom\n",
		out.String())

	out.Reset()
	require.NoError(t, printLog(&out, filepath.Join(dir, "PartyB", "logs", nodeLogFile)))
	require.Equal(t, "all good\n", out.String())
}
