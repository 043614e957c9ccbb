// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

// Command drcblob inspects and edits DRC resource blobs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/gif"  // register GIF input for replace
	_ "image/jpeg" // register JPEG input for replace
	_ "image/png"  // register PNG input for replace
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/drc"
	"github.com/woozymasta/pathrules"
)

const (
	defaultLogLevel = "info"
	defaultOutDir   = "."
)

// errUsage reports bad command line input.
var errUsage = errors.New("usage")

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := setLogLevel(getEnvString("DRCBLOB_LOG_LEVEL", defaultLogLevel)); err != nil {
		log.Fatal().Err(err).Msg("bad DRCBLOB_LOG_LEVEL")
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			printUsage(os.Stderr)
			os.Exit(2)
		}

		log.Fatal().Err(err).Msg("drcblob failed")
	}
}

// run dispatches one command; a bare file argument means "list".
func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	command, rest := args[0], args[1:]
	switch command {
	case "list", "ls":
		return listCommand(rest, stdout)
	case "info":
		return infoCommand(rest, stdout)
	case "palette":
		return paletteCommand(rest, stdout)
	case "extract":
		return extractCommand(ctx, rest, stdout)
	case "replace":
		return replaceCommand(ctx, rest, stdout)
	case "compact":
		return compactCommand(ctx, rest, stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		if strings.HasPrefix(command, "-") {
			return fmt.Errorf("%w: unknown command %s", errUsage, command)
		}

		return listCommand(args, stdout)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `drcblob - DRC resource blob tool

Usage:
  drcblob <command> [options] <file> [offset]

Commands:
  list     List resources (default when the first argument is a file)
  info     Show header, layout, and free space summary
  palette  Print palette colors of a palette or bitmap resource
  extract  Write resources as PNG, WAV, text, or raw files
  replace  Replace one resource from a PNG/JPEG/GIF, WAV, or raw file
  compact  Rewrite payloads back-to-back and drop free space

Examples:
  drcblob drc_resources.bin
  drcblob list firmware.bin 0x1000
  drcblob palette drc_resources.bin 0x0001
  drcblob extract -out res/ -select 'bitmap/*' drc_resources.bin
  drcblob replace -backup 2 drc_resources.bin 0x0001 logo.png
  drcblob compact drc_resources.bin

Environment Variables:
  DRCBLOB_LOG_LEVEL  Log level: debug, info, warn, error, disabled (default: info)
  DRCBLOB_WORKERS    Extract workers (default: GOMAXPROCS)

`)
}

func listCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	blob, err := openBlob(fs.Args())
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(stdout, blob.Entries())
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tID\tKIND\tOFFSET\tSIZE\tFORMAT")
	for _, e := range blob.Entries() {
		fmt.Fprintf(tw, "%d\t0x%04x\t%s\t0x%08x\t%d\t%s\n",
			e.Index, e.ID, e.Kind, e.Offset, e.Size, describeFormat(e.Format))
	}

	return tw.Flush()
}

func infoCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOut := fs.Bool("json", false, "JSON output")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	blob, err := openBlob(fs.Args())
	if err != nil {
		return err
	}

	h := blob.Header()
	free := blob.FreeSpace()
	reg := blob.Registry()
	info := struct {
		Header     drc.Header      `json:"header"`
		FreeRanges []drc.FreeRange `json:"free_ranges"`
		FreeBytes  uint64          `json:"free_bytes"`
		Offset     int64           `json:"offset"`
		Bitmaps    int             `json:"bitmaps"`
		Sounds     int             `json:"sounds"`
		Palettes   int             `json:"palettes"`
		Other      int             `json:"other"`
	}{
		Header:     h,
		Offset:     blob.Offset(),
		FreeRanges: free.Ranges(),
		FreeBytes:  free.Total(),
		Bitmaps:    len(reg.ByKind(drc.KindBitmap)),
		Sounds:     len(reg.ByKind(drc.KindSound)),
		Palettes:   len(reg.ByKind(drc.KindPalette)),
		Other:      len(reg.ByKind(drc.KindOther)),
	}

	if *jsonOut {
		return writeJSON(stdout, info)
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "layout:\t%s\n", h.Layout)
	if h.Layout == drc.LayoutIndexed {
		fmt.Fprintf(tw, "version:\t%d\n", h.Version)
		fmt.Fprintf(tw, "row align:\t%d\n", h.RowAlign)
	}
	fmt.Fprintf(tw, "offset:\t0x%x\n", info.Offset)
	fmt.Fprintf(tw, "length:\t%d\n", h.Length)
	fmt.Fprintf(tw, "directory:\t0x%x (%d entries)\n", h.DirOffset, h.Count)
	fmt.Fprintf(tw, "resources:\t%d bitmaps, %d sounds, %d palettes, %d other\n",
		info.Bitmaps, info.Sounds, info.Palettes, info.Other)
	fmt.Fprintf(tw, "free space:\t%d bytes in %d ranges\n", info.FreeBytes, len(info.FreeRanges))

	return tw.Flush()
}

func paletteCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("palette", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	offset := fs.String("offset", "0", "Blob start offset in file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	if fs.NArg() != 2 {
		return fmt.Errorf("%w: palette <file> <id>", errUsage)
	}

	blob, err := openBlob([]string{fs.Arg(0), *offset})
	if err != nil {
		return err
	}

	id, err := parseID(fs.Arg(1))
	if err != nil {
		return err
	}

	pal, err := blob.DecodePalette(id)
	if err != nil {
		return err
	}

	return pal.WriteText(stdout)
}

func extractCommand(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		outDir  = fs.String("out", defaultOutDir, "Output directory")
		raw     = fs.Bool("raw", false, "Write payloads as stored")
		sel     = fs.String("select", "", "Comma-separated include patterns, e.g. 'bitmap/*,*.wav'")
		exclude = fs.String("exclude", "", "Comma-separated exclude patterns")
		workers = fs.Int("workers", getEnvInt("DRCBLOB_WORKERS", 0), "Extract workers")
	)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	blob, err := openBlob(fs.Args())
	if err != nil {
		return err
	}

	rules := patternRules(*sel, true)
	excludes := patternRules(*exclude, false)
	if len(rules) == 0 && len(excludes) > 0 {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: "*"})
	}
	rules = append(rules, excludes...)

	var count atomic.Int64
	err = blob.Extract(ctx, *outDir, drc.ExtractOptions{
		Select:     rules,
		Raw:        *raw,
		MaxWorkers: *workers,
		OnEntryDone: func(e drc.ResourceEntry, outputPath string) {
			count.Add(1)
			log.Debug().Uint16("id", e.ID).Str("path", outputPath).Msg("extracted")
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "extracted %d resources to %s\n", count.Load(), *outDir)
	return nil
}

func replaceCommand(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("replace", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		offset   = fs.String("offset", "0", "Blob start offset in file")
		backup   = fs.Int("backup", 1, "Backup generations to keep")
		zeroFill = fs.Bool("zero-fill", false, "Zero bytes released by the replacement")
		rawInput = fs.Bool("raw", false, "Treat input as raw payload regardless of extension")
	)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	if fs.NArg() != 3 {
		return fmt.Errorf("%w: replace <file> <id> <input>", errUsage)
	}

	off, err := parseOffset(*offset)
	if err != nil {
		return err
	}

	id, err := parseID(fs.Arg(1))
	if err != nil {
		return err
	}

	editor, err := drc.OpenEditor(fs.Arg(0), drc.EditOptions{
		Logger:     &log.Logger,
		Offset:     off,
		BackupKeep: *backup,
		ZeroFill:   *zeroFill,
	})
	if err != nil {
		return err
	}

	res, err := replaceFromFile(editor, id, fs.Arg(2), *rawInput)
	if err != nil {
		return err
	}

	if _, err := editor.Commit(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "replaced 0x%04x: %s 0x%08x -> 0x%08x, %d -> %d bytes\n",
		id, res.Placement, res.OldOffset, res.NewOffset, res.OldSize, res.NewSize)
	return nil
}

// replaceFromFile picks image, WAV, or raw conversion by input extension.
func replaceFromFile(editor *drc.Editor, id uint16, input string, raw bool) (drc.ReplaceResult, error) {
	f, err := os.Open(input)
	if err != nil {
		return drc.ReplaceResult{}, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	ext := strings.ToLower(filepath.Ext(input))
	switch {
	case raw:
	case ext == ".wav":
		return editor.ReplaceSoundWAV(id, f)
	case ext == ".png" || ext == ".jpg" || ext == ".jpeg" || ext == ".gif":
		img, _, err := image.Decode(f)
		if err != nil {
			return drc.ReplaceResult{}, fmt.Errorf("decode image %s: %w", input, err)
		}

		return editor.ReplaceBitmapImage(id, img)
	}

	payload, err := io.ReadAll(f)
	if err != nil {
		return drc.ReplaceResult{}, fmt.Errorf("read input: %w", err)
	}

	return editor.Replace(id, payload, nil)
}

func compactCommand(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("compact", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		offset = fs.String("offset", "0", "Blob start offset in file")
		backup = fs.Int("backup", 1, "Backup generations to keep")
	)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: compact <file>", errUsage)
	}

	off, err := parseOffset(*offset)
	if err != nil {
		return err
	}

	editor, err := drc.OpenEditor(fs.Arg(0), drc.EditOptions{
		Logger:     &log.Logger,
		Offset:     off,
		BackupKeep: *backup,
	})
	if err != nil {
		return err
	}

	before := editor.Snapshot().Len()
	if err := editor.Compact(); err != nil {
		return err
	}

	res, err := editor.Commit(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "compacted %s: %d -> %d bytes\n", res.Path, before, res.Length)
	return nil
}

// openBlob opens "<file> [offset]" positional arguments.
func openBlob(args []string) (*drc.Blob, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("%w: expected <file> [offset]", errUsage)
	}

	var off int64
	if len(args) == 2 {
		var err error
		off, err = parseOffset(args[1])
		if err != nil {
			return nil, err
		}
	}

	return drc.OpenWithOptions(args[0], drc.OpenOptions{Offset: off})
}

// describeFormat renders a short format header summary for listings.
func describeFormat(f drc.FormatHeader) string {
	switch h := f.(type) {
	case drc.BitmapHeader:
		pal := "embedded palette"
		if !h.EmbeddedPalette {
			pal = fmt.Sprintf("palette 0x%04x", h.PaletteID)
		}

		return fmt.Sprintf("%dx%d %dbpp, %s", h.Width, h.Height, h.BitsPerPixel, pal)
	case drc.SoundHeader:
		return fmt.Sprintf("pcm%d %d-bit %dch %dHz", h.Encoding, h.BitsPerSample, h.Channels, h.SampleRate)
	case drc.PaletteHeader:
		name := "rgb24"
		if h.RecordFormat == drc.PaletteBGRA32 {
			name = "bgra32"
		}

		return fmt.Sprintf("%d colors %s", h.ColorCount(), name)
	case drc.RawHeader:
		return fmt.Sprintf("% x", h.Aux)
	default:
		return "-"
	}
}

// patternRules splits comma-separated patterns into include or exclude rules.
func patternRules(list string, include bool) []pathrules.Rule {
	action := pathrules.ActionExclude
	if include {
		action = pathrules.ActionInclude
	}

	var rules []pathrules.Rule
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		rules = append(rules, pathrules.Rule{Action: action, Pattern: p})
	}

	return rules
}

func parseOffset(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: bad offset %q", errUsage, s)
	}

	return v, nil
}

func parseID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: bad resource id %q", errUsage, s)
	}

	return uint16(v), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// setLogLevel sets global zerolog level by name.
func setLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "disabled", "none", "off":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		return fmt.Errorf("invalid log level %q: must be one of: debug, info, warn, error, disabled", level)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
