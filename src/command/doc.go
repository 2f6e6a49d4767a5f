// Package command runs the external programs driven by a test network: node
// processes, bootstrapping tools, the provisioning authority and the RPC
// proxy launcher.
//
// A Command exposes the combined stdout and stderr of its process as a live
// stream of lines. Subscribers registered with Subscribe, before or during
// execution, receive every subsequent line in order. The output pipe is
// drained eagerly by a single reader goroutine, so a slow subscriber never
// blocks the process itself, but subscribers must not block either.
//
// There is no structured success protocol between the network and the tools
// it drives. Exit status and output text are the only feedback, which is why
// failure detection from output is layered on top of Command with Watch and a
// LinePredicate rather than built into it:
//
//	c := command.New("java", []string{"-jar", "network-bootstrapper.jar", "--dir", dir})
//	err := command.RunWatched(c, command.ContainsMarker("Exception"))
//
// Watch interrupts the command on the first matching line.
package command
