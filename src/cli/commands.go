package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	versionpkg "editor-gateway/src/internal/version"
)

// CLI Constants
const (
	CmdServe        = "serve"
	CmdStdio        = "stdio"
	CmdStatus       = "status"
	CmdCapabilities = "capabilities"
	CmdConfig       = "config"
	CmdVersion      = "version"
	FlagConfig      = "config"
	FlagHost        = "host"
	FlagPort        = "port"
	FlagForce       = "force"
)

// CLI Variables
var (
	configPath string
	host       string
	port       int
	force      bool
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "editor-gateway",
	Short: "Editor Gateway - WebSocket JSON-RPC gateway to Language Server Protocol servers",
	Long: `Editor Gateway bridges editor frontends to language servers over a single
WebSocket JSON-RPC connection per editor.

QUICK START:
  editor-gateway serve                     # Start the WebSocket gateway (port 9257)
  editor-gateway stdio go                  # Attach one go server to stdin/stdout

CORE FEATURES:
  - Per-connection language server sessions with automatic teardown
  - Language detection from file extensions and project manifests
  - Project root resolution via ecosystem marker files
  - Diagnostics relayed back to the owning editor connection

SUPPORTED LANGUAGES:
  - Rust (rust-analyzer)
  - Go (gopls)
  - Python (pyright-langserver, falling back to pylsp)
  - TypeScript/JavaScript (typescript-language-server)

Use 'editor-gateway <command> --help' for detailed command information.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command definitions
var (
	serveCmd = &cobra.Command{
		Use:   CmdServe,
		Short: "Start the WebSocket gateway",
		Long: `Start the WebSocket gateway and serve editor connections until
interrupted.

If the configured port is occupied, another gateway instance is assumed
to be serving and the command exits successfully. Otherwise binding is
retried on successive ports before giving up.`,
		RunE: runServeCmd,
	}

	stdioCmd = &cobra.Command{
		Use:   CmdStdio + " <language> [path]",
		Short: "Attach one language server to stdin/stdout",
		Long: `Run a single language server session over this process's standard
streams using LSP Content-Length framing, without a WebSocket listener.

The language may be "unknown" to detect it from the path. Only one
stdio session per language is allowed at a time.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runStdioCmd,
	}

	statusCmd = &cobra.Command{
		Use:   CmdStatus,
		Short: "Show configured language servers and their availability",
		RunE:  runStatusCmd,
	}

	capabilitiesCmd = &cobra.Command{
		Use:   CmdCapabilities + " <language>",
		Short: "Probe a language server and print its capabilities",
		Long: `Start a throw-away language server rooted at the current directory,
run the initialize handshake, print the advertised capabilities, and
shut it down.`,
		Args: cobra.ExactArgs(1),
		RunE: runCapabilitiesCmd,
	}

	configCmd = &cobra.Command{
		Use:   CmdConfig,
		Short: "Manage gateway configuration",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE:  runConfigShowCmd,
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE:  runConfigInitCmd,
	}

	versionCmd = &cobra.Command{
		Use:   CmdVersion,
		Short: "Show version information",
		RunE:  runVersionCmd,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, FlagConfig, "", "Path to configuration file")

	serveCmd.Flags().StringVar(&host, FlagHost, "", "Host to bind (default from config)")
	serveCmd.Flags().IntVar(&port, FlagPort, 0, "Port to bind (default from config)")

	configInitCmd.Flags().BoolVar(&force, FlagForce, false, "Overwrite an existing configuration file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stdioCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	return RunServer(configPath, host, port)
}

func runStdioCmd(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 1 {
		path = args[1]
	}
	return RunStdio(configPath, args[0], path)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	return ShowStatus(configPath)
}

func runCapabilitiesCmd(cmd *cobra.Command, args []string) error {
	return ShowCapabilities(configPath, args[0])
}

func runConfigShowCmd(cmd *cobra.Command, args []string) error {
	return ShowConfig(configPath)
}

func runConfigInitCmd(cmd *cobra.Command, args []string) error {
	return InitConfig(configPath, force)
}

func runVersionCmd(cmd *cobra.Command, args []string) error {
	fmt.Println(versionpkg.GetFullVersionInfo())
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
