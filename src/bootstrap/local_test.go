package bootstrap

import (
	"errors"
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

// bootstrapperScript records its version and arguments into the session
// directory.
func bootstrapperScript(version string) string {
	return `dir=""
while [ $# -gt 0 ]; do
	if [ "$1" = "--dir" ]; then dir="$2"; fi
	shift
done
echo "` + version + `" > "$dir/bootstrapped-by"
echo "Bootstrapping complete"`
}

func localPlan(t *testing.T, specs ...node.Spec) (Plan, []*nodetest.Node) {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.JavaPath = testutil.FakeJava(t, t.TempDir())

	var nodes []node.Node
	var fakes []*nodetest.Node
	for _, s := range specs {
		n := nodetest.New(s, filepath.Join(conf.TargetDir, s.Name))
		nodes = append(nodes, n)
		fakes = append(fakes, n)
	}

	return Plan{Dir: conf.TargetDir, Nodes: nodes, Config: conf}, fakes
}

func distribution(t *testing.T, version string, typ node.DistributionType, bootstrapper bool) node.Distribution {
	install := filepath.Join(t.TempDir(), "corda-"+version)
	if bootstrapper {
		testutil.WriteScript(t, filepath.Join(install, node.BootstrapperFile), bootstrapperScript(version))
	} else {
		testutil.WriteFile(t, filepath.Join(install, "README"), version)
	}
	return node.Distribution{Version: version, Type: typ, InstallPath: install}
}

func TestSelect(t *testing.T) {
	if _, ok := Select(node.Distribution{Type: node.Authority}).(*Authority); !ok {
		t.Fatalf("Authority distribution should select the Authority strategy")
	}
	if _, ok := Select(node.Distribution{}).(*Local); !ok {
		t.Fatalf("Local distribution should select the Local strategy")
	}
}

func TestLocalPicksNewestLocalBootstrapper(t *testing.T) {
	p, fakes := localPlan(t,
		node.Spec{Name: "PartyB", Distribution: distribution(t, "4.3", node.Local, true)},
		node.Spec{Name: "PartyA", Distribution: distribution(t, "4.10", node.Local, true)},
		node.Spec{Name: "Notary", Distribution: distribution(t, "4.12", node.Authority, true)},
	)

	testutil.WriteFile(t, filepath.Join(p.Config.DriverDir, "postgresql.jar"), "driver")

	res, err := (&Local{}).Bootstrap(p)
	require.NoError(t, err)
	require.Empty(t, res.Services)

	data, err := ioutil.ReadFile(filepath.Join(p.Dir, "bootstrapped-by"))
	require.NoError(t, err)
	require.Equal(t, "4.10", strings.TrimSpace(string(data)))

	require.True(t, testutil.Exists(filepath.Join(p.Dir, config.DefaultLibsDir, "postgresql.jar")))

	for _, f := range fakes {
		require.Equal(t, 1, f.Configured(), f.Name())
		require.Equal(t, 1, f.DependenciesStarted(), f.Name())
		require.Equal(t, 0, f.Started(), f.Name())
	}
}

func TestLocalMissingBootstrapperIsNotFatal(t *testing.T) {
	p, fakes := localPlan(t,
		node.Spec{Name: "PartyA", Distribution: distribution(t, "4.8", node.Local, false)},
	)

	res, err := (&Local{}).Bootstrap(p)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, 1, fakes[0].Configured())
	// missing driver directory is skipped too
	require.False(t, testutil.Exists(filepath.Join(p.Dir, config.DefaultLibsDir)))
}

func TestLocalDependencyFailureStopsAtFirst(t *testing.T) {
	dist := distribution(t, "4.8", node.Local, true)
	p, fakes := localPlan(t,
		node.Spec{Name: "PartyA", Distribution: dist},
		node.Spec{Name: "PartyB", Distribution: dist},
		node.Spec{Name: "PartyC", Distribution: dist},
	)
	cause := errors.New("postgres did not start")
	fakes[1].DependencyErr = cause

	_, err := (&Local{}).Bootstrap(p)
	require.True(t, common.IsNetwork(err, common.DependencyFailure), "unexpected error: %v", err)
	require.True(t, errors.Is(err, cause))

	require.Equal(t, 1, fakes[0].DependenciesStarted())
	require.Equal(t, 1, fakes[1].DependenciesStarted())
	require.Equal(t, 0, fakes[2].Configured())
	require.False(t, testutil.Exists(filepath.Join(p.Dir, "bootstrapped-by")))
}

func TestLocalBootstrapperFailure(t *testing.T) {
	for name, script := range map[string]string{
		"exit status": `echo "bad node.conf"; exit 3`,
		"marker":      `echo "java.lang.IllegalStateException: duplicate name"; sleep 30`,
	} {
		t.Run(name, func(t *testing.T) {
			install := filepath.Join(t.TempDir(), "corda-4.8")
			testutil.WriteScript(t, filepath.Join(install, node.BootstrapperFile), script)

			p, _ := localPlan(t, node.Spec{
				Name:         "PartyA",
				Distribution: node.Distribution{Version: "4.8", InstallPath: install},
			})

			_, err := (&Local{}).Bootstrap(p)
			require.True(t, common.IsNetwork(err, common.BootstrapFailure), "unexpected error: %v", err)

			log, err := ioutil.ReadFile(filepath.Join(p.Dir, "logs", "bootstrap.log"))
			require.NoError(t, err)
			require.NotEmpty(t, log)
		})
	}
}

func TestLocalCustomFailurePredicate(t *testing.T) {
	install := filepath.Join(t.TempDir(), "corda-4.8")
	testutil.WriteScript(t, filepath.Join(install, node.BootstrapperFile), `echo "ERROR: no nodes found"`)

	p, _ := localPlan(t, node.Spec{
		Name:         "PartyA",
		Distribution: node.Distribution{Version: "4.8", InstallPath: install},
	})
	p.Failure = func(line string) bool { return strings.HasPrefix(line, "ERROR") }

	_, err := (&Local{}).Bootstrap(p)
	require.True(t, common.IsNetwork(err, common.BootstrapFailure), "unexpected error: %v", err)
}
