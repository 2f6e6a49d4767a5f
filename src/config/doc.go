// Package config defines the configuration of a test network session.
//
// Whether a network is built from Go test code or from the netrunner command
// line, it uses the Config object defined in this package to store and forward
// configuration options. A session owns a single target directory, defined by
// Config.TargetDir, laid out as follows once the network is generated:
//
//	libs/      // database drivers copied from Config.DriverDir
//	<node>/    // one directory per node, owned by the node process
//	.cache/    // shared cache of the bootstrapping tools
//	journal/   // badger database recording the session events
//
// A few fixed external files are consumed along the way: the driver directory,
// the authority reference configuration and network parameters template, and
// the RPC proxy launcher script. Their defaults live under a staging root
// (see DefaultStagingRoot).
package config
