package node

import (
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
)

// Fixed file names inside a distribution.
const (
	NodeBinaryFile    = "corda.jar"
	BootstrapperFile  = "network-bootstrapper.jar"
	AuthorityToolFile = "doorman.jar"
)

// DistributionType tells how nodes of a distribution are provisioned.
type DistributionType uint32

const (
	// Local distributions are provisioned by the bootstrapping tool shipped
	// with the distribution.
	Local DistributionType = iota

	// Authority distributions are provisioned by a separate provisioning
	// authority which issues identities and network parameters.
	Authority
)

// String returns the string representation of a DistributionType
func (t DistributionType) String() string {
	switch t {
	case Local:
		return "Local"
	case Authority:
		return "Authority"
	default:
		return "Unknown"
	}
}

// ParseDistributionType is the inverse of String. Unknown values map to
// Local.
func ParseDistributionType(s string) DistributionType {
	if strings.EqualFold(s, "authority") {
		return Authority
	}
	return Local
}

// Distribution is a specific build of the node software.
type Distribution struct {
	Version     string
	Type        DistributionType
	InstallPath string
}

// NodeBinary returns the path of the node executable.
func (d Distribution) NodeBinary() string {
	return filepath.Join(d.InstallPath, NodeBinaryFile)
}

// Bootstrapper returns the path of the bootstrapping tool.
func (d Distribution) Bootstrapper() string {
	return filepath.Join(d.InstallPath, BootstrapperFile)
}

// AuthorityTool returns the path of the provisioning authority tool.
func (d Distribution) AuthorityTool() string {
	return filepath.Join(d.InstallPath, AuthorityToolFile)
}

// IsZero reports whether d is unset.
func (d Distribution) IsZero() bool {
	return d.Version == "" && d.InstallPath == ""
}

// CompareVersions orders two distribution versions. Versions such as "4",
// "4.8", "4.10.1" or "4.0-SNAPSHOT" are accepted; unparsable versions sort
// before every valid one.
func CompareVersions(a, b string) int {
	return semver.Compare(canonicalVersion(a), canonicalVersion(b))
}

func canonicalVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")

	core, pre := v, ""
	if i := strings.IndexByte(v, '-'); i >= 0 {
		core, pre = v[:i], v[i:]
	}

	parts := strings.Split(core, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}

	return "v" + strings.Join(parts, ".") + pre
}

// Database is the database engine backing a node.
type Database string

const (
	H2        Database = "h2"
	Postgres  Database = "postgres"
	SQLServer Database = "sql-server"
	Oracle    Database = "oracle"

	DefaultDatabase = H2
)

// Embedded reports whether the database runs inside the node process and
// needs no dependency service.
func (d Database) Embedded() bool {
	return d == "" || d == H2
}

// NotaryType is the notary role of a node.
type NotaryType uint32

const (
	NoNotary NotaryType = iota
	ValidatingNotary
	NonValidatingNotary
)

// String returns the string representation of a NotaryType
func (n NotaryType) String() string {
	switch n {
	case NoNotary:
		return "None"
	case ValidatingNotary:
		return "Validating"
	case NonValidatingNotary:
		return "NonValidating"
	default:
		return "Unknown"
	}
}

// ParseNotaryType is the inverse of String, case insensitive. Unknown values
// map to NoNotary.
func ParseNotaryType(s string) NotaryType {
	switch strings.ToLower(s) {
	case "validating":
		return ValidatingNotary
	case "nonvalidating", "non-validating":
		return NonValidatingNotary
	default:
		return NoNotary
	}
}

// Spec describes one node of a topology.
type Spec struct {
	Name               string
	Distribution       Distribution
	Database           Database
	Notary             NotaryType
	IssuableCurrencies []string

	// CompatibilityZoneURL is only meaningful for Authority distributions.
	CompatibilityZoneURL string

	// RPCProxy requests the shared RPC proxy side-process.
	RPCProxy bool
}

// Clone returns a deep copy of s.
func (s Spec) Clone() Spec {
	c := s
	c.IssuableCurrencies = append([]string(nil), s.IssuableCurrencies...)
	return c
}

// IsNotary reports whether the node has a notary role.
func (s Spec) IsNotary() bool {
	return s.Notary != NoNotary
}
