package cli

import (
	"fmt"
	"os"

	"github.com/napbridge/napmsg-go/internal/config"
)

// ModeArg is the fixed first argument selecting the backend's RPC mode.
const ModeArg = "rpc"

// Command represents the backend command to execute.
type Command struct {
	// Args are the command line arguments.
	Args []string

	// Env are the environment variables.
	Env []string
}

// BuildArgs constructs the backend command arguments.
//
// The first argument is always the RPC mode token. The backend address is
// passed as --napcat-url when configured; the same address also travels in
// the environment (see BuildEnvironment), so the backend may consume either
// form.
func BuildArgs(options *config.Options) []string {
	args := []string{ModeArg}

	if options.NapcatURL != "" {
		args = append(args, "--napcat-url", options.NapcatURL)
	}

	return args
}

// BuildEnvironment constructs the environment variables for the backend process.
func BuildEnvironment(options *config.Options) []string {
	// Start with current environment
	env := os.Environ()

	env = append(env, "NAPMSG_ENTRYPOINT=sdk-go")

	// Mirror the --napcat-url argument for backends that read the variable
	if options.NapcatURL != "" {
		env = append(env, "NAPCAT_URL="+options.NapcatURL)
	}

	// Add or override with user-provided environment variables
	for key, value := range options.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
