// Package cli provides executable discovery and command building for the
// nap-msg backend.
//
// This package provides two main capabilities:
//
// # Executable Discovery
//
// The Discoverer interface locates the nap-msg executable:
//
//	discoverer := cli.NewDiscoverer(&cli.Config{
//	    ExecPath: "",           // Optional explicit path
//	    Logger:   slog.Default(),
//	})
//	execPath, err := discoverer.Discover()
//
// Discovery searches in the following order:
//  1. Explicit path in Config.ExecPath (if provided)
//  2. System PATH
//  3. Common installation directories (~/.local/bin, /usr/local/bin, /usr/bin)
//
// There is no version gate: the backend carries no stable version contract,
// so discovery only verifies that the executable exists.
//
// # Command Building
//
// The package provides functions to build the backend's arguments and
// environment per the launch contract (mode token first, backend address as
// both flag and environment variable):
//
//	args := cli.BuildArgs(options)
//	env := cli.BuildEnvironment(options)
package cli
