package cli

import (
	"log/slog"
	"os"
	"slices"
	"testing"

	"github.com/napbridge/napmsg-go/internal/config"
	"github.com/napbridge/napmsg-go/internal/errors"
	"github.com/stretchr/testify/require"
)

// TestDiscoverer_NotFound tests that an invalid executable path returns ExecNotFoundError.
func TestDiscoverer_NotFound(t *testing.T) {
	discoverer := NewDiscoverer(&Config{
		ExecPath: "/nonexistent/path/to/nap-msg",
		Logger:   slog.Default(),
	})

	_, err := discoverer.Discover()

	require.Error(t, err)
	require.IsType(t, &errors.ExecNotFoundError{}, err)
}

// TestDiscoverer_NotFoundReportsSearchedPath tests that the error names the path that was tried.
func TestDiscoverer_NotFoundReportsSearchedPath(t *testing.T) {
	discoverer := NewDiscoverer(&Config{
		ExecPath: "/nonexistent/path/to/nap-msg",
		Logger:   slog.Default(),
	})

	_, err := discoverer.Discover()

	require.Error(t, err)

	var notFound *errors.ExecNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, []string{"/nonexistent/path/to/nap-msg"}, notFound.SearchedPaths)
}

// TestDiscoverer_ExplicitPath tests discovery with an explicit path.
func TestDiscoverer_ExplicitPath(t *testing.T) {
	// Create a temp file to act as the backend executable
	tmpDir := t.TempDir()
	fakeExec := tmpDir + "/nap-msg"

	err := os.WriteFile(fakeExec, []byte("#!/bin/sh\nexit 0"), 0o755)
	require.NoError(t, err)

	discoverer := NewDiscoverer(&Config{
		ExecPath: fakeExec,
		Logger:   slog.Default(),
	})

	path, err := discoverer.Discover()

	require.NoError(t, err)
	require.Equal(t, fakeExec, path)
}

// TestDiscoverer_PathLookup tests discovery through PATH.
func TestDiscoverer_PathLookup(t *testing.T) {
	tmpDir := t.TempDir()
	fakeExec := tmpDir + "/" + config.DefaultExecName

	err := os.WriteFile(fakeExec, []byte("#!/bin/sh\nexit 0"), 0o755)
	require.NoError(t, err)

	t.Setenv("PATH", tmpDir)

	discoverer := NewDiscoverer(&Config{
		Logger: slog.Default(),
	})

	path, err := discoverer.Discover()

	require.NoError(t, err)
	require.Equal(t, fakeExec, path)
}

// TestBuildArgs_Basic tests that the rpc mode token always comes first.
func TestBuildArgs_Basic(t *testing.T) {
	options := &config.Options{}
	args := BuildArgs(options)

	require.Equal(t, []string{ModeArg}, args)
}

// TestBuildArgs_WithNapcatURL tests that the OneBot endpoint is passed as a flag.
func TestBuildArgs_WithNapcatURL(t *testing.T) {
	options := &config.Options{
		NapcatURL: "ws://127.0.0.1:3001",
	}

	args := BuildArgs(options)

	require.Equal(t, ModeArg, args[0])

	urlIdx := slices.Index(args, "--napcat-url")
	require.NotEqual(t, -1, urlIdx, "Expected --napcat-url flag to be present")
	require.Less(t, urlIdx+1, len(args), "Expected value after --napcat-url flag")
	require.Equal(t, "ws://127.0.0.1:3001", args[urlIdx+1])
}

// TestBuildArgs_WithoutNapcatURL tests that no flag appears when the endpoint is unset.
func TestBuildArgs_WithoutNapcatURL(t *testing.T) {
	options := &config.Options{}

	args := BuildArgs(options)

	require.NotContains(t, args, "--napcat-url",
		"Expected --napcat-url flag to be absent when NapcatURL is empty")
}

// TestBuildEnvironment_EnvVarsPassedToSubprocess tests environment variable handling.
func TestBuildEnvironment_EnvVarsPassedToSubprocess(t *testing.T) {
	options := &config.Options{
		Env: map[string]string{
			"CUSTOM_VAR": "custom_value",
		},
	}

	env := BuildEnvironment(options)
	require.NotNil(t, env)

	require.True(t, slices.Contains(env, "CUSTOM_VAR=custom_value"),
		"Expected CUSTOM_VAR=custom_value in environment")
}

// TestBuildEnvironment_Entrypoint tests that the SDK identifies itself to the backend.
func TestBuildEnvironment_Entrypoint(t *testing.T) {
	env := BuildEnvironment(&config.Options{})

	require.True(t, slices.Contains(env, "NAPMSG_ENTRYPOINT=sdk-go"),
		"Expected NAPMSG_ENTRYPOINT=sdk-go in environment")
}

// TestBuildEnvironment_NapcatURLMirrored tests that the endpoint option is
// visible to the backend both as a flag and as NAPCAT_URL.
func TestBuildEnvironment_NapcatURLMirrored(t *testing.T) {
	options := &config.Options{
		NapcatURL: "ws://127.0.0.1:3001",
	}

	env := BuildEnvironment(options)

	require.True(t, slices.Contains(env, "NAPCAT_URL=ws://127.0.0.1:3001"),
		"Expected NAPCAT_URL in environment")
}

// TestBuildEnvironment_OptionOverridesInherited tests that options.Env wins
// over variables inherited from the parent process.
func TestBuildEnvironment_OptionOverridesInherited(t *testing.T) {
	t.Setenv("NAPMSG_TEST_VAR", "inherited")

	options := &config.Options{
		Env: map[string]string{
			"NAPMSG_TEST_VAR": "override",
		},
	}

	env := BuildEnvironment(options)

	// exec.Cmd applies later entries over earlier ones, so the override
	// must appear after the inherited value.
	inheritedIdx := slices.Index(env, "NAPMSG_TEST_VAR=inherited")
	overrideIdx := slices.Index(env, "NAPMSG_TEST_VAR=override")

	require.NotEqual(t, -1, overrideIdx, "Expected override value in environment")
	if inheritedIdx != -1 {
		require.Greater(t, overrideIdx, inheritedIdx)
	}
}
