package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/davidrichards/ram/internal/config"
)

const (
	ExitSuccess           = 0
	ExitPackageFailure    = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

type Command string

const (
	CommandPrecache Command = "precache"
	CommandServe    Command = "serve"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

const DefaultAddr = "127.0.0.1:8080"

type TraceConfig struct {
	Enabled bool
	Path    string
}

// CLIInvocation is the fully canonicalized description of a run.
//
// All paths are normalized (Clean) and relative paths are resolved against
// WorkDir, which is absolute.
type CLIInvocation struct {
	Command Command

	WorkDir      string
	ConfigPath   string
	OutputDir    string
	PublicRoot   string
	BaseURL      string
	Force        bool
	PackageNames []string
	Environment  config.Environment
	Trace        TraceConfig
	Verbose      bool

	Addr   string
	Reload bool

	// Usage is the rendered flag help, filled for CommandHelp.
	Usage string
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

const banner = `Usage: ram [serve] [OPTIONS]

Packages every JS, CSS and template asset listed in the configuration file,
saving each package with a gzipped copy next to it. Only packages whose
sources changed since their last build are rebuilt unless --force is given.

If the manifest uses "embed_assets: mhtml", --base-url is required to
precompile the MHTML stylesheet variants.

Naming a package with --packages that the manifest does not define aborts
the run before anything is built, exiting with status 2.

"ram serve" renders packages on request instead, for development.

Options:
`

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("ram", pflag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed
	fs.SortFlags = false
	return fs
}

// ParseInvocation parses CLI flags into a canonical CLIInvocation. It does
// not read environment variables; the process working directory is only
// consulted when --workdir is absent.
func ParseInvocation(args []string) (CLIInvocation, error) {
	fs := newFlagSet()

	var (
		workDir     string
		configPath  string
		outputDir   string
		publicRoot  string
		baseURL     string
		force       bool
		packages    []string
		environment string
		tracePath   string
		verbose     bool
		addr        string
		reload      bool
		showVersion bool
		showHelp    bool
	)

	fs.StringVarP(&workDir, "workdir", "w", "", `asset root that relative paths resolve against (default: current directory)`)
	fs.StringVarP(&outputDir, "output", "o", "", `output folder for packages (default: "public/assets")`)
	fs.StringVarP(&configPath, "config", "c", config.DefaultConfigPath, `path to assets.yml`)
	fs.StringVarP(&baseURL, "base-url", "u", "", `base URL for MHTML (ex: "http://example.com")`)
	fs.BoolVarP(&force, "force", "f", false, "force a rebuild of all assets")
	fs.StringSliceVarP(&packages, "packages", "p", nil, `list of packages to build (ex: "core,ui", default: all); unknown names abort with exit 2`)
	fs.StringVarP(&publicRoot, "public-root", "P", "", `path to public assets (default: "public")`)
	fs.StringVarP(&environment, "environment", "e", "", "configuration environment: development|staging|production")
	fs.StringVar(&tracePath, "trace", "", "write the canonical JSON build report to this path")
	fs.BoolVarP(&verbose, "verbose", "v", false, "log fresh packages and requests")
	fs.StringVar(&addr, "addr", DefaultAddr, "listen address for serve")
	fs.BoolVar(&reload, "reload", false, "serve: rebuild the package list on every request")
	fs.BoolVar(&showVersion, "version", false, "display ram version")
	fs.BoolVarP(&showHelp, "help", "h", false, "show this help")

	if err := fs.Parse(args); err != nil {
		return CLIInvocation{}, invalidInvocationf("%v", err)
	}
	if showHelp {
		return CLIInvocation{Command: CommandHelp, Usage: banner + fs.FlagUsages()}, nil
	}
	if showVersion {
		return CLIInvocation{Command: CommandVersion}, nil
	}

	cmd := CommandPrecache
	rest := fs.Args()
	if len(rest) > 0 && rest[0] == string(CommandServe) {
		cmd = CommandServe
		rest = rest[1:]
	}
	if len(rest) != 0 {
		return CLIInvocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(rest, " "))
	}

	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return CLIInvocation{}, &InvocationError{ExitCode: ExitInternalError, Message: fmt.Sprintf("resolving working directory: %v", err)}
		}
		workDir = wd
	}
	workDir = filepath.Clean(workDir)
	if !filepath.IsAbs(workDir) {
		return CLIInvocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", workDir)
	}

	env, err := parseEnvironment(environment)
	if err != nil {
		return CLIInvocation{}, err
	}

	resolvedConfig, err := resolveUnderWorkDir(workDir, configPath)
	if err != nil {
		return CLIInvocation{}, err
	}

	inv := CLIInvocation{
		Command:     cmd,
		WorkDir:     workDir,
		ConfigPath:  resolvedConfig,
		BaseURL:     strings.TrimSpace(baseURL),
		Force:       force,
		Environment: env,
		Verbose:     verbose,
		Addr:        addr,
		Reload:      reload,
	}

	for _, p := range packages {
		if name := strings.TrimSpace(p); name != "" {
			inv.PackageNames = append(inv.PackageNames, name)
		}
	}
	if len(packages) > 0 && len(inv.PackageNames) == 0 {
		return CLIInvocation{}, invalidInvocationf("--packages must name at least one package")
	}

	if outputDir != "" {
		if inv.OutputDir, err = resolveUnderWorkDir(workDir, outputDir); err != nil {
			return CLIInvocation{}, err
		}
	}
	if publicRoot != "" {
		if inv.PublicRoot, err = resolveUnderWorkDir(workDir, publicRoot); err != nil {
			return CLIInvocation{}, err
		}
	}
	if strings.TrimSpace(tracePath) != "" {
		resolvedTrace, err := resolveUnderWorkDir(workDir, tracePath)
		if err != nil {
			return CLIInvocation{}, err
		}
		inv.Trace = TraceConfig{Enabled: true, Path: resolvedTrace}
	}
	if cmd == CommandServe && strings.TrimSpace(addr) == "" {
		return CLIInvocation{}, invalidInvocationf("--addr must not be empty")
	}

	return inv, nil
}

func parseEnvironment(raw string) (config.Environment, error) {
	n := config.Environment(strings.ToLower(strings.TrimSpace(raw)))
	switch n {
	case "", config.Development, config.Staging, config.Production:
		return n, nil
	default:
		return "", invalidInvocationf("invalid --environment %q (expected development|staging|production)", raw)
	}
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return workDir, nil
	}
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCode extracts a semantic exit code from a ParseInvocation error.
// If the error is not a known invocation error, it returns ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
