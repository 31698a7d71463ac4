package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"plantit/internal/export"
	logx "plantit/pkg/logx"
)

func exportCommand(e *env) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all data as JSON, CSV files or a zip backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			now := time.Now()
			b, err := export.Collect(cmd.Context(), core.Store, now)
			if err != nil {
				return err
			}
			log := core.Log.With(logx.Category(logx.CatImportExport))

			switch strings.ToLower(format) {
			case "json":
				if out == "" || out == "-" {
					return b.WriteJSON(cmd.OutOrStdout())
				}
				if err := writeFile(out, b.WriteJSON); err != nil {
					return err
				}
			case "csv":
				if out == "" {
					out = "export"
				}
				paths, err := b.WriteCSV(out)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				log.Info("csv export written", logx.String("dir", out), logx.Any("counts", b.Counts()))
				return nil
			case "zip":
				if out == "" {
					out = export.ArchiveName(now)
				}
				if err := writeFile(out, b.WriteArchive); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q (want json, csv or zip)", format)
			}
			log.Info("export written", logx.String("format", format), logx.String("path", out), logx.Any("counts", b.Counts()))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json, csv or zip")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (json, zip) or directory (csv); json defaults to stdout")
	return cmd
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
