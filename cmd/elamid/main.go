package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"elamid/internal/config"
	elamiderrors "elamid/internal/errors"
	"elamid/internal/launcher"
	"elamid/internal/logging"
	"elamid/internal/parser"
	dockerruntime "elamid/internal/runtime"
	"elamid/internal/server"
	"elamid/internal/ui"
	"elamid/pkg/request"
)

// version is set at build time via ldflags
var version = "dev"

// shutdownGrace bounds how long in-flight launches may finish on shutdown.
const shutdownGrace = 30 * time.Second

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:     "elamid",
	Short:   "Elamid - launcher for AI assessment containers",
	Version: version,
	Long: `Elamid launches AI assessment containers on the local Docker engine.
Each launch replaces the container in a single reserved slot with a fresh one
built from the request parameters.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve GET /run over HTTP",
	Long: `Serve starts the HTTP daemon. Each GET /run request replaces the reserved
container with a new one and answers in plain text once it has started.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeLog.Close()

		l := newLauncher(cfg)
		defer l.Close()

		srv := server.New(l, cfg.Server)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch one assessment container and exit",
	Long: `Run performs the same replace-and-run launch as GET /run, taking the
parameters from flags. It returns once the container has started.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeLog.Close()

		req := runRequestFromFlags(cmd)
		if err := parser.ValidateRunRequest(req); err != nil {
			return err
		}

		l := newLauncher(cfg)
		defer l.Close()

		result, err := l.Launch(cmd.Context(), req)
		if err != nil {
			return err
		}

		console := ui.NewConsole()
		console.PrintSuccess(server.SuccessMessage)
		console.PrintInfo(fmt.Sprintf("Container %s (%s), run %s", result.ContainerName, shortID(result.ContainerID), result.RunID))
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the Docker engine is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeLog.Close()

		rt, err := dockerruntime.NewDockerRuntime(cmd.Context(), dockerOptions(cfg))
		if err != nil {
			return elamiderrors.NewClientError(
				"Docker prerequisite check failed",
				"The container engine could not be reached",
				"Check that the Docker daemon is running and its socket is accessible",
				err,
			)
		}
		defer rt.Close()

		ui.NewConsole().PrintSuccess("Docker engine is reachable")
		return nil
	},
}

// setup loads configuration and installs the process logger.
func setup(cmd *cobra.Command) (*config.Config, io.Closer, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := parser.ParseConfig(v, configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, closer, err := logging.Setup(logging.Options{
		Dir:        cfg.Log.Dir,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, nil, elamiderrors.NewFileSystemError("Failed to set up logging", "", "Set ELAMID_LOG_DIR to a writable directory", err)
	}
	slog.SetDefault(logger)

	return cfg, closer, nil
}

func dockerOptions(cfg *config.Config) dockerruntime.Options {
	return dockerruntime.Options{
		Host:       cfg.Docker.Host,
		APIVersion: cfg.Docker.APIVersion,
	}
}

func newLauncher(cfg *config.Config) *launcher.Launcher {
	return launcher.New(launcher.DockerRuntimeFactory(dockerOptions(cfg)), launcher.OptionsFromConfig(cfg))
}

func runRequestFromFlags(cmd *cobra.Command) *request.RunRequest {
	get := func(name string) string {
		value, _ := cmd.Flags().GetString(name)
		return value
	}
	return &request.RunRequest{
		Image:      get("image"),
		APIHost:    get("api-host"),
		APIPort:    get("api-port"),
		GetAPI:     get("get-api"),
		PutAPI:     get("put-api"),
		AddFileAPI: get("add-file-api"),
		APIToken:   get("api-token"),
		InstallDir: get("install-dir"),
		Operation:  get("operation"),
		Activity:   get("activity"),
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func bindFlag(key string, flags *pflag.FlagSet, flag string) {
	if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
		slog.Error("Failed to bind flag", "flag", flag, "error", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("docker-host", "", "Docker endpoint (default $DOCKER_HOST, else the first local Docker socket found)")
	rootCmd.PersistentFlags().String("log-dir", "", "Directory for elamid.log")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	bindFlag("docker.host", rootCmd.PersistentFlags(), "docker-host")
	bindFlag("log.dir", rootCmd.PersistentFlags(), "log-dir")
	bindFlag("log.level", rootCmd.PersistentFlags(), "log-level")

	serveCmd.Flags().String("addr", "", "Listen address (default :80)")
	serveCmd.Flags().Bool("serialize", true, "Serialize concurrent /run calls on the container slot")
	bindFlag("server.addr", serveCmd.Flags(), "addr")
	bindFlag("launcher.serialize", serveCmd.Flags(), "serialize")
	rootCmd.AddCommand(serveCmd)

	runCmd.Flags().String("image", "", "Image reference to launch (required)")
	runCmd.Flags().String("api-host", "", "API host passed to the assessment (required)")
	runCmd.Flags().String("api-port", "", "API port passed to the assessment (required)")
	runCmd.Flags().String("get-api", "", "API path for fetching input")
	runCmd.Flags().String("put-api", "", "API path for posting results")
	runCmd.Flags().String("add-file-api", "", "API path for uploading files")
	runCmd.Flags().String("api-token", "", "API token")
	runCmd.Flags().String("install-dir", "", "Install directory holding apps/ (required)")
	runCmd.Flags().String("operation", "", "Operation to run, e.g. stt, sdz, nlp, report (required)")
	runCmd.Flags().String("activity", "", "Activity identifier")
	for _, name := range []string{"image", "api-host", "api-port", "install-dir", "operation"} {
		if err := runCmd.MarkFlagRequired(name); err != nil {
			slog.Error("Failed to mark flag as required for run command", "flag", name, "error", err)
		}
	}
	rootCmd.AddCommand(runCmd)

	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		elamiderrors.HandleError(err)
		os.Exit(1)
	}
}
