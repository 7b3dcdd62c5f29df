package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"portico/internal/bootstrap"
	"portico/internal/idp"
	"portico/internal/session"
	"portico/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the sign-in flow failed.
	ExitCodeAuthFailed = 3
)

var (
	configPath   string
	logLevelName string
)

// rootCmd represents the base command for the portico application.
var rootCmd = &cobra.Command{
	Use:   "portico",
	Short: "Session bootstrapper for module-federated platform UIs",
	Long: `portico drives the session lifecycle of a multi-tenant, module-federated
platform: it acquires and validates sessions against the platform gateway,
reconciles the tenant's entitled modules with module discovery, and writes
an HTML shell that loads the resolved assets.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.ParseLevel(logLevelName), os.Stderr)
	},
}

// SetVersion sets the version for the root command. Called from main to
// inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "portico version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to semantic exit codes for scripting.
func getExitCode(err error) int {
	if errors.Is(err, session.ErrSessionInvalid) || errors.Is(err, bootstrap.ErrNoTenant) {
		return ExitCodeAuthRequired
	}
	if errors.Is(err, idp.ErrMissingCode) {
		return ExitCodeAuthFailed
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config directory (default is $HOME/.config/portico)")
	rootCmd.PersistentFlags().StringVar(&logLevelName, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newModulesCmd())
	rootCmd.AddCommand(newBootstrapCmd())
}
