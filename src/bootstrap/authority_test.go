package bootstrap

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flashtony2005/corda/src/common"
	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/node"
	"github.com/flashtony2005/corda/src/node/nodetest"
	"github.com/flashtony2005/corda/src/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// authorityScript fakes the authority tool. failMode makes the matching key
// generation mode fail.
func authorityScript(calls string, failMode string) string {
	return fmt.Sprintf(`echo "authority $*" >> %q
case "$*" in
	*%s*) echo "keystore error"; exit 1 ;;
	*--mode*) exit 0 ;;
	*--set-network-parameters*) exit 0 ;;
	*) echo "%s"; sleep 30 ;;
esac`, calls, failMode, config.DefaultAuthorityReadyMarker)
}

// notaryScript fakes the node binary of the notary.
func notaryScript(calls string) string {
	return fmt.Sprintf(`echo "node $*" >> %q
all="$*"
dir=""
while [ $# -gt 0 ]; do
	if [ "$1" = "--base-directory" ]; then dir="$2"; fi
	shift
done
case "$all" in
	*--just-generate-node-info*) echo info > "$dir/nodeInfo-0A1B2C" ;;
esac`, calls)
}

type authorityFixture struct {
	plan   Plan
	calls  string
	notary *nodetest.Node
	party  *nodetest.Node
}

func newAuthorityFixture(t *testing.T, failMode string, withNotary bool) *authorityFixture {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.JavaPath = testutil.FakeJava(t, t.TempDir())

	calls := filepath.Join(t.TempDir(), "calls.log")

	install := filepath.Join(t.TempDir(), "corda-4.8")
	testutil.WriteScript(t, filepath.Join(install, node.AuthorityToolFile), authorityScript(calls, failMode))
	testutil.WriteScript(t, filepath.Join(install, node.NodeBinaryFile), notaryScript(calls))
	dist := node.Distribution{Version: "4.8", Type: node.Authority, InstallPath: install}

	testutil.WriteFile(t, filepath.Join(conf.AuthorityConfigDir, config.DefaultNodeConfFile), "address = \"localhost:1300\"\n")
	testutil.WriteFile(t, conf.NetworkParamsTemplate, "minimumPlatformVersion = 4\n")

	notarySpec := node.Spec{Name: "Notary", Distribution: dist}
	if withNotary {
		notarySpec.Notary = node.ValidatingNotary
	}

	f := &authorityFixture{
		calls:  calls,
		notary: nodetest.New(notarySpec, filepath.Join(conf.TargetDir, "Notary")),
		party:  nodetest.New(node.Spec{Name: "PartyA", Distribution: dist}, filepath.Join(conf.TargetDir, "PartyA")),
	}
	f.plan = Plan{
		Dir:    conf.TargetDir,
		Nodes:  []node.Node{f.party, f.notary},
		Config: conf,
	}

	return f
}

func (f *authorityFixture) readCalls(t *testing.T) []string {
	data, err := ioutil.ReadFile(f.calls)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestAuthorityBootstrap(t *testing.T) {
	f := newAuthorityFixture(t, "NO_SUCH_MODE", true)
	work := f.plan.Config.AuthorityWorkDir

	res, err := (&Authority{}).Bootstrap(f.plan)
	require.NoError(t, err)
	require.Len(t, res.Services, 1)

	service := res.Services[0]
	require.False(t, service.Exited())
	service.Interrupt()
	service.WaitFor()

	calls := f.readCalls(t)
	require.Len(t, calls, 7)

	expected := []string{
		"authority --mode ROOT_KEYGEN --config-file node.conf --trust-store-password trustpass",
		"authority --mode CA_KEYGEN --config-file node.conf --trust-store-password trustpass",
		"authority --config-file node.conf",
		"node --initial-registration --network-root-truststore " +
			filepath.Join(work, "certificates", RootTrustStoreFile) +
			" --network-root-truststore-password trustpass --base-directory " + f.notary.Dir(),
		"node --just-generate-node-info --base-directory " + f.notary.Dir(),
		"authority --config-file node.conf --set-network-parameters " + f.plan.Config.NetworkParamsTemplate,
		"authority --config-file node.conf",
	}
	require.Equal(t, expected, calls)

	require.True(t, testutil.Exists(filepath.Join(work, config.DefaultNodeConfFile)))
	require.True(t, testutil.Exists(filepath.Join(work, NotaryNodeInfoFile)))

	require.Equal(t, 1, f.notary.Configured())
	require.Equal(t, 1, f.party.Configured())
	require.Equal(t, 0, f.notary.Started())
}

func TestAuthorityStepFailureIsFatal(t *testing.T) {
	f := newAuthorityFixture(t, "CA_KEYGEN", true)

	res, err := (&Authority{}).Bootstrap(f.plan)
	require.Nil(t, res)
	require.True(t, common.IsNetwork(err, common.BootstrapFailure), "unexpected error: %v", err)
	require.Contains(t, err.Error(), "ca keygen")

	// nothing runs after the failed step
	calls := f.readCalls(t)
	require.Len(t, calls, 2)
	require.Contains(t, calls[1], "CA_KEYGEN")
	require.Equal(t, 0, f.notary.Started())
	require.Equal(t, 0, f.party.Started())
}

func TestAuthorityRequiresNotary(t *testing.T) {
	f := newAuthorityFixture(t, "NO_SUCH_MODE", false)

	_, err := (&Authority{}).Bootstrap(f.plan)
	require.True(t, common.IsNetwork(err, common.BootstrapFailure), "unexpected error: %v", err)
	require.False(t, testutil.Exists(f.calls))
}

func TestAuthorityMissingTemplate(t *testing.T) {
	f := newAuthorityFixture(t, "NO_SUCH_MODE", true)
	f.plan.Config.NetworkParamsTemplate = filepath.Join(t.TempDir(), "missing.conf")

	_, err := (&Authority{}).Bootstrap(f.plan)
	require.True(t, common.IsNetwork(err, common.BootstrapFailure), "unexpected error: %v", err)
	require.Contains(t, err.Error(), "network parameters")
}
