package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fruitsalade/s3file/internal/logging"
	"github.com/fruitsalade/s3file/pkg/s3file"
	"github.com/fruitsalade/s3file/pkg/transfer"
)

func textFlag(usage string) *cli.BoolFlag {
	return &cli.BoolFlag{Name: "text", Aliases: []string{"t"}, Usage: usage}
}

func modeFlag(value string) *cli.StringFlag {
	return &cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: value, Usage: "Access mode: r, rb, w or wb"}
}

// parseMode reads --mode and checks its direction.
func parseMode(c *cli.Context, write bool) (s3file.Mode, error) {
	mode, err := s3file.ParseMode(c.String("mode"))
	if err != nil {
		return 0, err
	}
	if mode.Writable() != write {
		return 0, fmt.Errorf("%w: %s cannot use mode %s", s3file.ErrInvalidMode, c.Command.Name, mode)
	}
	return mode, nil
}

func (a *app) commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "ls",
			Usage:     "List objects whose path starts with PREFIX",
			ArgsUsage: "PREFIX",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "long", Aliases: []string{"l"}, Usage: "Show size and modification time"},
			},
			Action: a.list,
		},
		{
			Name:      "upload",
			Usage:     "Upload a local file or directory tree",
			ArgsUsage: "LOCAL REMOTE",
			Action:    a.upload,
		},
		{
			Name:      "download",
			Usage:     "Download an object or every object under a prefix",
			ArgsUsage: "REMOTE LOCAL",
			Action:    a.download,
		},
		{
			Name:      "cat",
			Usage:     "Stream an object to standard output",
			ArgsUsage: "REMOTE",
			Flags:     []cli.Flag{modeFlag("rb")},
			Action:    a.cat,
		},
		{
			Name:      "put",
			Usage:     "Write standard input to an object through a staging file",
			ArgsUsage: "REMOTE",
			Flags:     []cli.Flag{modeFlag("wb")},
			Action:    a.put,
		},
		{
			Name:      "load",
			Usage:     "Print an object, downloading it to the cache first if needed",
			ArgsUsage: "REMOTE",
			Flags: []cli.Flag{
				textFlag("Load in text mode"),
				&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Download even if cached"},
			},
			Action: a.load,
		},
		{
			Name:      "save",
			Usage:     "Save standard input to an object through the cache",
			ArgsUsage: "REMOTE",
			Flags:     []cli.Flag{textFlag("Save as text")},
			Action:    a.save,
		},
	}
}

// args returns exactly n positional arguments.
func args(c *cli.Context, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("%s: expected %d argument(s): %s", c.Command.Name, n, c.Command.ArgsUsage)
	}
	return c.Args().Slice(), nil
}

func commandContext(c *cli.Context) context.Context {
	return logging.WithCommand(c.Context, c.Command.Name)
}

func (a *app) list(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	ctx := commandContext(c)

	for obj, err := range a.client.List(ctx, argv[0]) {
		if err != nil {
			return err
		}
		if c.Bool("long") {
			fmt.Fprintf(a.stdout, "%12d  %s  %s\n", obj.Size, obj.LastModified.UTC().Format(time.RFC3339), obj.Path)
		} else {
			fmt.Fprintln(a.stdout, obj.Path)
		}
	}
	return nil
}

func (a *app) report(ctx context.Context, op string, res transfer.Result, start time.Time) {
	logging.WithContext(ctx).Info(op+" complete",
		logging.Int("files", res.Files),
		logging.Int64("bytes", res.Bytes),
		logging.Duration("elapsed", time.Since(start)))
}

func (a *app) upload(c *cli.Context) error {
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	ctx := commandContext(c)
	start := time.Now()

	res, err := a.client.Upload(ctx, argv[0], argv[1])
	if err != nil {
		return err
	}
	a.report(ctx, "upload", res, start)
	return nil
}

func (a *app) download(c *cli.Context) error {
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	ctx := commandContext(c)
	start := time.Now()

	res, err := a.client.Download(ctx, argv[0], argv[1])
	if err != nil {
		return err
	}
	a.report(ctx, "download", res, start)
	return nil
}

func (a *app) cat(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	mode, err := parseMode(c, false)
	if err != nil {
		return err
	}
	return a.client.With(commandContext(c), argv[0], mode, func(f *s3file.File) error {
		_, err := io.Copy(a.stdout, f)
		return err
	})
}

func (a *app) put(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	mode, err := parseMode(c, true)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	return a.client.With(commandContext(c), argv[0], mode, func(f *s3file.File) error {
		if mode.Text() {
			_, err := f.WriteString(string(data))
			return err
		}
		_, err := f.Write(data)
		return err
	})
}

func (a *app) load(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	ctx := commandContext(c)

	if c.Bool("text") {
		text, err := a.client.LoadText(ctx, argv[0], c.Bool("force"))
		if err != nil {
			return err
		}
		_, err = io.WriteString(a.stdout, text)
		return err
	}
	data, err := a.client.LoadBytes(ctx, argv[0], c.Bool("force"))
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(data)
	return err
}

func (a *app) save(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	var content any = data
	if c.Bool("text") {
		content = string(data)
	}
	return a.client.Save(commandContext(c), argv[0], content)
}
