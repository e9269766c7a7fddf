// Command s3file lists, copies, reads and writes remote objects.
//
// Configuration comes from the environment (and an optional .env file); the
// global flags override it for one invocation.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/fruitsalade/s3file/internal/config"
	"github.com/fruitsalade/s3file/internal/logging"
	"github.com/fruitsalade/s3file/internal/metrics"
	"github.com/fruitsalade/s3file/pkg/s3file"
	"github.com/fruitsalade/s3file/pkg/storage"
	"github.com/fruitsalade/s3file/pkg/storage/backend"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "s3file:", err)
		os.Exit(1)
	}
}

// app carries the state shared by every command of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer

	cfg       *config.Config
	transport storage.Transport
	client    *s3file.Client
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	a := &app{stdin: stdin, stdout: stdout}
	return &cli.App{
		Name:   "s3file",
		Usage:  "Read, write and copy objects in S3-compatible storage",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Usage: "Storage backend: s3, minio or local"},
			&cli.StringFlag{Name: "endpoint", Usage: "Custom S3 or MinIO endpoint"},
			&cli.StringFlag{Name: "region", Usage: "Bucket region"},
			&cli.StringFlag{Name: "profile", Usage: "Shared AWS config profile"},
			&cli.StringFlag{Name: "local-root", Usage: "Object tree root for the local backend"},
			&cli.StringFlag{Name: "staging-dir", Usage: "Directory for staging files of write handles"},
			&cli.StringFlag{Name: "cache-dir", Usage: "Directory for load/save cache files"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error"},
			&cli.StringFlag{Name: "log-format", Usage: "Log format: json or console"},
			&cli.StringFlag{Name: "metrics-textfile", Usage: "Write Prometheus metrics to this file on exit"},
		},
		Before:   a.setup,
		After:    a.teardown,
		Commands: a.commands(),
	}
}

func (a *app) setup(c *cli.Context) error {
	cfg, err := config.Load(func(cfg *config.Config) {
		override := func(flag string, dst *string) {
			if c.IsSet(flag) {
				*dst = c.String(flag)
			}
		}
		override("backend", &cfg.Backend)
		override("endpoint", &cfg.S3Endpoint)
		override("region", &cfg.S3Region)
		override("profile", &cfg.S3Profile)
		override("local-root", &cfg.LocalStoragePath)
		override("staging-dir", &cfg.StagingDir)
		override("cache-dir", &cfg.CacheDir)
		override("log-level", &cfg.LogLevel)
		override("log-format", &cfg.LogFormat)
		override("metrics-textfile", &cfg.MetricsTextfile)
	})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("logging init: %w", err)
	}

	// Help and version need no transport.
	if c.Args().Len() == 0 {
		return nil
	}

	t, err := backend.New(c.Context, cfg.StorageConfig())
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	a.transport = t
	a.client = s3file.NewClient(t,
		s3file.WithStagingDir(cfg.StagingDir),
		s3file.WithCacheDir(cfg.CacheDir))

	logging.Debug("storage ready",
		logging.String("backend", t.Type()),
		logging.String("staging_dir", a.client.StagingDir()),
		logging.String("cache_dir", a.client.CacheDir()))
	return nil
}

func (a *app) teardown(c *cli.Context) error {
	defer logging.Sync()

	if a.transport != nil {
		if err := a.transport.Close(); err != nil {
			logging.Warn("closing transport", logging.Err(err))
		}
	}
	if a.cfg != nil && a.cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			logging.Warn("writing metrics textfile",
				logging.String("path", a.cfg.MetricsTextfile),
				logging.Err(err))
		}
	}
	return nil
}
