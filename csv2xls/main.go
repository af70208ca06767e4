// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Command csv2xls converts CSV files into an Excel 97-2003 (.xls) workbook,
// one sheet per file.
//
//	csv2xls [flags] [sheet:]file.csv...
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/UNO-SOFT/zlog/v2"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/UNO-SOFT/tablexls"
	"github.com/UNO-SOFT/tablexls/xls"
)

var verbose zlog.VerboseVar
var logger = zlog.NewLogger(zlog.MaybeConsoleHandler(&verbose, os.Stderr)).SLog()

func main() {
	if err := Main(); err != nil {
		logger.Error("MAIN", "error", err)
		os.Exit(1)
	}
}

func Main() error {
	fs := flag.NewFlagSet("csv2xls", flag.ContinueOnError)
	fs.Var(&verbose, "v", "logging verbosity")
	flagEnc := fs.String("charset", tablexls.EncName, "csv charset name")
	flagOut := fs.String("o", "", "output file name (default first input file + .xls, - for stdout)")
	flagHeader := fs.Bool("header", false, "write the csv header as the first row")
	flagInfer := fs.Bool("infer", false, "infer column types (bool, number, date) from the values")
	flagTitle := fs.String("title", "", "document title")
	flagAuthor := fs.String("author", "", "document author")

	app := ffcli.Command{Name: "csv2xls", FlagSet: fs,
		ShortUsage: "csv2xls [flags] [sheet:]file.csv...",
		Options:    []ff.Option{ff.WithEnvVarPrefix("CSV2XLS")},
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				args = []string{"-"}
			}
			opts := tablexls.CsvOptions{Charset: *flagEnc, HeaderRow: *flagHeader, Infer: *flagInfer}
			ds := tablexls.DataSet{Name: *flagTitle}
			for i, fn := range args {
				if err := ctx.Err(); err != nil {
					return err
				}
				var sheetName string
				if j := strings.IndexByte(fn, ':'); j >= 0 {
					sheetName, fn = fn[:j], fn[j+1:]
				}
				t, err := tablexls.ReadCsvTable(fn, opts)
				if err != nil {
					return fmt.Errorf("%q: %w", fn, err)
				}
				if sheetName != "" {
					t.Name = sheetName
				}
				logger.Debug("read", "file", fn, "sheet", t.Name, "index", i,
					"columns", len(t.Columns), "rows", len(t.Rows))
				ds.Add(t)
			}

			out := outputName(*flagOut, args[0])
			w := tablexls.Writer{
				Logger: logger,
				Properties: xls.Properties{
					Title: *flagTitle, Author: *flagAuthor, Application: "csv2xls",
				},
			}
			if out == "" || out == "-" {
				bw := bufio.NewWriter(os.Stdout)
				if err := writeSheets(w.NewXLSWriter(bw), &ds); err != nil {
					return err
				}
				return bw.Flush()
			}
			logger.Info("writing", "file", out, "sheets", len(ds.Tables))
			return w.WriteDataSet(&ds, out)
		},
	}

	if err := app.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return app.Run(ctx)
}

// writeSheets appends every table of ds as a sheet to sw, and closes it.
// On error sw is left unclosed, so nothing is written.
func writeSheets(sw tablexls.SpreadsheetWriter, ds *tablexls.DataSet) error {
	for _, t := range ds.Tables {
		sh, err := sw.NewSheet(t.Name, t.Columns)
		if err != nil {
			return err
		}
		for i, row := range t.Rows {
			if err := sh.AppendRow(row...); err != nil {
				return fmt.Errorf("%s: row %d: %w", t.Name, i+1, err)
			}
		}
		if err := sh.Close(); err != nil {
			return err
		}
	}
	return sw.Close()
}

// outputName returns out, or the name of the first input with .xls extension.
func outputName(out, first string) string {
	if out != "" {
		return out
	}
	if j := strings.IndexByte(first, ':'); j >= 0 {
		first = first[j+1:]
	}
	if first == "" || first == "-" {
		return "-"
	}
	return strings.TrimSuffix(first, filepath.Ext(first)) + ".xls"
}
