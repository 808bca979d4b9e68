package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/starford/claimline/internal"
	"github.com/starford/claimline/internal/apperr"
	"github.com/starford/claimline/internal/batch"
	"github.com/starford/claimline/internal/mcpserver"
	"github.com/starford/claimline/internal/timelines"
)

func renderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "theme", Usage: "Color theme (light, dark)"},
		&cli.StringFlag{Name: "title", Usage: "Page title"},
		&cli.IntFlag{Name: "width", Usage: "Chart width in pixels, 0 for auto"},
		&cli.IntFlag{Name: "height", Usage: "Chart height in pixels, 0 for auto"},
		&cli.BoolFlag{Name: "static", Usage: "Disable zoom and hover interaction"},
	}
}

func scanFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "Descend into subdirectories"},
		&cli.StringSliceFlag{Name: "exclude", Aliases: []string{"x"}, Usage: "Glob of relative paths to skip (repeatable)"},
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"}
}

func applyRenderFlags(cmd *cli.Command, cfg *internal.Config) {
	if cmd.IsSet("theme") {
		cfg.Render.Theme = cmd.String("theme")
	}
	if cmd.IsSet("title") {
		cfg.Render.Title = cmd.String("title")
	}
	if cmd.IsSet("width") {
		cfg.Render.Width = int(cmd.Int("width"))
	}
	if cmd.IsSet("height") {
		cfg.Render.Height = int(cmd.Int("height"))
	}
	if cmd.Bool("static") {
		cfg.Render.Interactive = false
	}
}

func applyScanFlags(cmd *cli.Command, cfg *internal.Config) {
	if dir := cmd.Args().First(); dir != "" {
		cfg.Input.Path = dir
	}
	if cmd.IsSet("recursive") {
		cfg.Input.Recursive = cmd.Bool("recursive")
	}
	if cmd.IsSet("exclude") {
		cfg.Input.Exclude = cmd.StringSlice("exclude")
	}
}

// openService validates cfg and builds the timeline service. The returned
// func releases it.
func openService(cfg *internal.Config) (*timelines.Service, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	svc, closer, err := internal.NewTimelineService(cfg, cliLogger(cfg))
	if err != nil {
		return nil, nil, err
	}
	return svc, func() { _ = closer.Close() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// defaultOutput places the artifact next to src.
func defaultOutput(src, suffix string) string {
	return filepath.Join(filepath.Dir(src), batch.OutputName(filepath.Base(src), suffix))
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render one claims file to an HTML timeline",
		ArgsUsage: "<claims.json> [output.html]",
		Flags:     renderFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			src := cmd.Args().First()
			if src == "" {
				return fmt.Errorf("%w: claims file is required", apperr.ErrInvalidInput)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRenderFlags(cmd, cfg)
			cfg.Input.Path = filepath.Dir(src)
			cfg.Catalog.Enabled = false

			dst := cmd.Args().Get(1)
			if dst == "" {
				dst = defaultOutput(src, cfg.Output.Suffix)
			}

			svc, done, err := openService(cfg)
			if err != nil {
				return err
			}
			defer done()

			doc, err := svc.RenderFile(ctx, src, dst)
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stdout, renderSummary(src, dst, doc))
			return nil
		},
	}
}

func batchCommand() *cli.Command {
	flags := append(scanFlags(), renderFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (default: the input folder)"},
		&cli.StringFlag{Name: "suffix", Usage: "Replacement for the .json extension in output names"},
		jsonFlag(),
	)
	return &cli.Command{
		Name:      "batch",
		Usage:     "Render every claims file of a folder",
		ArgsUsage: "[folder]",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyScanFlags(cmd, cfg)
			applyRenderFlags(cmd, cfg)
			if cmd.IsSet("out") {
				cfg.Output.Dir = cmd.String("out")
			}
			if cmd.IsSet("suffix") {
				cfg.Output.Suffix = cmd.String("suffix")
			}

			svc, done, err := openService(cfg)
			if err != nil {
				return err
			}
			defer done()

			res, err := svc.RunBatch(ctx)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(os.Stdout, res)
			}
			fmt.Fprint(os.Stdout, batchSummary(svc.InputRoot(), res))
			return nil
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Classify the JSON files of a folder without rendering",
		ArgsUsage: "[folder]",
		Flags:     append(scanFlags(), jsonFlag()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyScanFlags(cmd, cfg)
			cfg.Catalog.Enabled = false

			svc, done, err := openService(cfg)
			if err != nil {
				return err
			}
			defer done()

			entries, err := svc.Scan(ctx)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(os.Stdout, entries)
			}
			fmt.Fprint(os.Stdout, scanSummary(svc.InputRoot(), entries))
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	flags := append(scanFlags(),
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Parquet file to write", Value: "claims.parquet"},
	)
	return &cli.Command{
		Name:      "export",
		Usage:     "Write normalized claim items of a file or folder to Parquet",
		ArgsUsage: "[file-or-folder]",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyScanFlags(cmd, cfg)
			cfg.Catalog.Enabled = false

			target := cmd.Args().First()
			single := false
			if target != "" {
				info, err := os.Stat(target)
				if err != nil {
					return fmt.Errorf("%w: %v", apperr.ErrFileIO, err)
				}
				if !info.IsDir() {
					single = true
					cfg.Input.Path = filepath.Dir(target)
				}
			}

			svc, done, err := openService(cfg)
			if err != nil {
				return err
			}
			defer done()

			var res *timelines.ExportResult
			if single {
				abs, err := filepath.Abs(target)
				if err != nil {
					return err
				}
				res, err = svc.ExportFiles(ctx, cmd.String("out"), []string{abs})
				if err != nil {
					return err
				}
			} else {
				res, err = svc.Export(ctx, cmd.String("out"))
				if err != nil {
					return err
				}
			}
			fmt.Fprint(os.Stdout, exportSummary(res))
			if res.Files == 0 {
				return fmt.Errorf("%w: no file could be exported", apperr.ErrNoValidFiles)
			}
			return nil
		},
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("input") {
		cfg.Input.Path = cmd.String("input")
	}
	return startServer(ctx, cfg)
}

func startServer(ctx context.Context, cfg *internal.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Render the input folder, watch it and serve timelines over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "HTTP port"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Folder of claims files"},
		},
		Action: serve,
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve claimline tools over MCP on stdio",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := internal.EnsureInputDir(cfg); err != nil {
				return err
			}
			svc, done, err := openService(cfg)
			if err != nil {
				return err
			}
			defer done()

			return mcpserver.New(svc, version).ServeStdio()
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent batch runs from the catalog",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of runs", Value: 20},
			jsonFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Catalog.Enabled {
				return errors.New("catalog is disabled in the configuration")
			}
			svc, done, err := openService(cfg)
			if err != nil {
				return err
			}
			defer done()

			runs, err := svc.Runs(ctx, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(os.Stdout, runs)
			}
			fmt.Fprint(os.Stdout, historySummary(runs))
			return nil
		},
	}
}
