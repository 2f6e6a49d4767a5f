// Package bootstrap prepares the shared configuration of a test network
// before any node is started.
//
// Two strategies exist, selected by the distribution type of the network:
//
// Local copies the database drivers into the session, configures every node
// and runs the bootstrapping tool of the newest local distribution over the
// whole session directory.
//
// Authority drives a provisioning authority through an ordered sequence of
// external commands: key generation, registration of the notary, network
// parameters, and finally a long-running authority service which is handed
// back to the caller in Result.Services.
//
// Every step is an external command whose output is watched for a failure
// predicate (the configured error marker by default). A failed step aborts
// the bootstrap with a common.NetworkErr.
package bootstrap
