package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"contactdesk/internal/codec"
	"contactdesk/internal/controller"
)

var (
	exportFormat string
	exportDir    string
	importFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export your contacts to contacts.json or contacts.xml",
	Long: `Downloads the collection from the service and writes it without the
server-owned id and ownerUsername fields. Nothing is requested when you have
no contacts.`,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all of your contacts with the contents of a JSON or XML file",
	Long: `Replaces your whole collection. The format is taken from --format, or
detected from the file name (.xml) and falls back to JSON. JSON files are
validated locally before anything is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format: json or xml")
	exportCmd.Flags().StringVarP(&exportDir, "output", "o", ".", "Directory to write the export to")

	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "Force the format: json or xml")
	importCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := codec.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	a := openApp(cliOptions(false)...)
	defer a.Close()
	if err := a.requireSession(); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	if err := a.ctl.Load(ctx); err != nil {
		return fmt.Errorf("could not load contacts")
	}
	art, err := a.ctl.Export(ctx, format)
	if errors.Is(err, controller.ErrNothingToExport) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("export failed")
	}
	path, err := art.Save(exportDir)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d bytes).\n", path, len(art.Data))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	up, err := codec.ReadUpload(args[0])
	if err != nil {
		return err
	}
	if importFormat != "" {
		if up.Format, err = codec.ParseFormat(importFormat); err != nil {
			return err
		}
	}

	a := openApp(cliOptions(assumeYes)...)
	defer a.Close()
	if err := a.requireSession(); err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	err = a.ctl.ImportDetected(ctx, up)
	switch {
	case err == nil:
		fmt.Printf("%d contacts.\n", a.ctl.Store().Len())
		return nil
	case errors.Is(err, controller.ErrCancelled):
		fmt.Println("Cancelled.")
		return nil
	}
	return fmt.Errorf("import failed: %w", err)
}
