package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/starford/claimline/internal/render"
)

const (
	modeFile   = "file"
	modeFolder = "folder"
	modeServe  = "serve"
)

// wizardData holds the answers of the interactive session.
type wizardData struct {
	Mode      string
	Input     string
	Output    string
	Theme     string
	Title     string
	Recursive bool
}

// interactive reports whether both ends of the terminal belong to a person.
func interactive() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	stdin := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	stdout := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if !stdin || !stdout {
		return false
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

func validateInput(mode string) func(string) error {
	return func(p string) error {
		if p == "" {
			return errors.New("path is required")
		}
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("cannot open %s", p)
		}
		switch {
		case mode == modeFile && info.IsDir():
			return errors.New("expected a file, got a folder")
		case mode != modeFile && !info.IsDir():
			return errors.New("expected a folder")
		}
		return nil
	}
}

func newModeForm(data *wizardData) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("What do you want to do?").
			Options(
				huh.NewOption("Render one claims file", modeFile),
				huh.NewOption("Render a folder of claims files", modeFolder),
				huh.NewOption("Serve and watch a folder", modeServe),
			).
			Value(&data.Mode),
	))
}

func newDetailsForm(data *wizardData) *huh.Form {
	inputTitle := "Claims folder"
	if data.Mode == modeFile {
		inputTitle = "Claims file"
	}
	fields := []huh.Field{
		huh.NewInput().
			Title(inputTitle).
			Value(&data.Input).
			Validate(validateInput(data.Mode)),
	}
	if data.Mode == modeServe {
		return huh.NewForm(huh.NewGroup(fields...))
	}

	fields = append(fields,
		huh.NewInput().
			Title("Output").
			Description("Leave empty to write next to the input").
			Value(&data.Output),
		huh.NewInput().
			Title("Page title").
			Value(&data.Title),
		huh.NewSelect[string]().
			Title("Theme").
			Options(
				huh.NewOption("Light", render.ThemeLight),
				huh.NewOption("Dark", render.ThemeDark),
			).
			Value(&data.Theme),
	)
	if data.Mode == modeFolder {
		fields = append(fields, huh.NewConfirm().
			Title("Include subfolders?").
			Value(&data.Recursive))
	}
	return huh.NewForm(huh.NewGroup(fields...))
}

func runWizard(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data := &wizardData{
		Mode:  modeFile,
		Theme: cfg.Render.Theme,
		Title: cfg.Render.Title,
	}
	if err := newModeForm(data).RunWithContext(ctx); err != nil {
		return err
	}
	if err := newDetailsForm(data).RunWithContext(ctx); err != nil {
		return err
	}

	switch data.Mode {
	case modeServe:
		cfg.Input.Path = data.Input
		return startServer(ctx, cfg)
	case modeFile:
		cfg.Render.Theme, cfg.Render.Title = data.Theme, data.Title
		cfg.Input.Path = filepath.Dir(data.Input)
		cfg.Catalog.Enabled = false
		dst := data.Output
		if dst == "" {
			dst = defaultOutput(data.Input, cfg.Output.Suffix)
		}
		svc, done, err := openService(cfg)
		if err != nil {
			return err
		}
		defer done()
		doc, err := svc.RenderFile(ctx, data.Input, dst)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, renderSummary(data.Input, dst, doc))
		return nil
	default:
		cfg.Render.Theme, cfg.Render.Title = data.Theme, data.Title
		cfg.Input.Path = data.Input
		cfg.Input.Recursive = data.Recursive
		cfg.Output.Dir = data.Output
		svc, done, err := openService(cfg)
		if err != nil {
			return err
		}
		defer done()
		res, err := svc.RunBatch(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, batchSummary(svc.InputRoot(), res))
		return nil
	}
}
