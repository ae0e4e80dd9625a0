// Command epp hosts the EPP script family: automation hooks the LIMS
// invokes at workflow steps, one subcommand per script.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"limsepp/internal/audit"
	"limsepp/internal/blob"
	"limsepp/internal/config"
	"limsepp/internal/epp"
	"limsepp/internal/limsapi"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

var (
	cfgPath string
	logPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:     "epp",
	Short:   "EPP scripts for copying and deriving UDF values in the LIMS",
	Version: version,
	Long: `epp bundles the automation scripts the LIMS runs at workflow steps.
Each subcommand reads fields from a process, optionally parses an uploaded
result file, and writes derived values onto related samples, artifacts, or
projects, leaving a changelog line for every change.`,
	SilenceUsage: true,
}

// runEnv carries the per-run collaborators every script needs.
type runEnv struct {
	cfg    config.Config
	client *limsapi.Client
	runlog *epp.RunLog
	store  blob.Store
}

// setup loads configuration, opens the run log, and connects to the LIMS.
func setup(ctx context.Context) (*runEnv, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	level := zapcore.InfoLevel
	if verbose || cfg.Log.Level == "debug" {
		level = zapcore.DebugLevel
	}
	store, err := openFileStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if logPath != "" {
		// Pick up the previous run's log for this artifact so repeated runs
		// of the same step read as one history.
		if _, statErr := os.Stat(logPath); os.IsNotExist(statErr) {
			if err := epp.PrependPrevious(ctx, store, logPath, logPath); err != nil {
				return nil, err
			}
		}
	}
	runlog, err := epp.NewRunLog(logPath, cfg.MainLog, level)
	if err != nil {
		return nil, err
	}
	runlog.LogInvocation(os.Args)

	client, err := limsapi.New(cfg.BaseURI, cfg.Username, cfg.Password, limsapi.WithLogger(runlog.Logger))
	if err != nil {
		_ = runlog.Close()
		return nil, err
	}
	if err := client.CheckVersion(ctx); err != nil {
		_ = runlog.Close()
		return nil, err
	}
	return &runEnv{cfg: cfg, client: client, runlog: runlog, store: store}, nil
}

func (e *runEnv) close() { _ = e.runlog.Close() }

// openFileStore prefers explicit env driver selection, then the config file.
func openFileStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	if os.Getenv("LIMSEPP_BLOB_DRIVER") == "" && cfg.Blob.Driver != "" {
		switch blob.Driver(cfg.Blob.Driver) {
		case blob.DriverFilesystem:
			return blob.NewFilesystem(cfg.Blob.Root)
		case blob.DriverS3:
			return blob.NewS3(ctx, blob.S3Config{Bucket: cfg.Blob.Bucket})
		case blob.DriverMemory:
			return blob.NewMemory(), nil
		default:
			return nil, fmt.Errorf("unknown blob driver %s", cfg.Blob.Driver)
		}
	}
	return blob.Open(ctx)
}

// openChangelog builds the changelog sink for a run. An empty path with a
// file driver disables the changelog, matching scripts run without one.
func (e *runEnv) openChangelog(ctx context.Context, path string) (audit.Sink, error) {
	driver := audit.Driver(e.cfg.Audit.Driver)
	if env := os.Getenv("LIMSEPP_AUDIT_DRIVER"); env != "" {
		driver = audit.Driver(env)
	}
	if path == "" {
		path = e.cfg.Audit.Path
	}
	if (driver == "" || driver == audit.DriverFile) && path == "" {
		return nil, nil
	}
	if driver == "" || driver == audit.DriverFile {
		// Seed a fresh changelog file from the previous run's artifact.
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if err := epp.PrependPrevious(ctx, e.store, path, path); err != nil {
				return nil, err
			}
		}
	}
	return audit.Open(driver, path, e.cfg.Audit.DSN)
}

// attachChangelog places a file-backed changelog into the working directory
// under the process id, where the EPP node picks it up for upload.
func attachChangelog(sink audit.Sink, pid string, log *zap.Logger) {
	fs, ok := sink.(*audit.FileSink)
	if !ok {
		return
	}
	if _, err := os.Stat(fs.Path()); err != nil {
		return
	}
	dst, err := epp.AttachFile(fs.Path(), pid)
	if err != nil {
		log.Warn("could not attach changelog for upload", zap.Error(err))
		return
	}
	log.Info("attached changelog", zap.String("path", dst))
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "configuration file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "file name for the run log")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(copyFieldCmd, copyQubitCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
