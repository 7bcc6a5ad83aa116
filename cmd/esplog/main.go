package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dsnet/golib/memfile"
	"github.com/melaurent/kafero"

	"github.com/egonelbre/exp-esplog/config"
	"github.com/egonelbre/exp-esplog/esplog"
	"github.com/egonelbre/exp-esplog/export"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fs := kafero.NewOsFs()

	var err error
	switch os.Args[1] {
	case "inspect", "i":
		err = cmdInspect(ctx, fs, os.Args[2:])
	case "extract", "e":
		err = cmdExtract(ctx, fs, os.Args[2:])
	case "help", "h", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: esplog <command> [options] <input.bin | ->")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  inspect, i   print record statistics of a log")
	fmt.Fprintln(os.Stderr, "  extract, e   decode a log into csv or protobuf files")
	fmt.Fprintln(os.Stderr, "  help, h      show this help")
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openInput returns a seekable reader for name, buffering stdin in memory.
func openInput(fs kafero.Fs, name string) (io.ReadSeeker, func() error, error) {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, nil, fmt.Errorf("read stdin: %w", err)
		}
		return memfile.New(data), func() error { return nil }, nil
	}

	file, err := fs.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}

func cmdInspect(ctx context.Context, fs kafero.Fs, args []string) error {
	flags := flag.NewFlagSet("inspect", flag.ExitOnError)
	verbose := flags.Bool("v", false, "log every record")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return errors.New("input file not specified")
	}

	input, closeInput, err := openInput(fs, flags.Arg(0))
	if err != nil {
		return err
	}
	defer closeInput()

	stats, err := esplog.Inspect(ctx, input, esplog.WithLogger(newLogger(*verbose)))

	tags := make([]esplog.Tag, 0, len(stats.Records))
	for tag := range stats.Records {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	fmt.Printf("bytes read:   %d\n", stats.Bytes)
	fmt.Printf("gyro blocks:  %d\n", stats.Blocks)
	fmt.Printf("saturated:    %d\n", stats.Saturated)
	fmt.Printf("dropped:      %d\n", stats.Dropped)
	for _, tag := range tags {
		fmt.Printf("%-13s %d\n", tag.String()+":", stats.Records[tag])
	}
	if stats.Stopped != nil {
		fmt.Printf("stopped:      %v\n", stats.Stopped)
	}
	return err
}

func cmdExtract(ctx context.Context, fs kafero.Fs, args []string) error {
	flags := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := flags.String("config", "", "YAML configuration file")
	outputDir := flags.String("o", "", "output directory (default: from config, else next to the input)")
	format := flags.String("format", "", "output format: csv|proto (default: from config)")
	merge := flags.Bool("merge", false, "write one time-ordered csv")
	verbose := flags.Bool("v", false, "log every record")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return errors.New("input file not specified")
	}
	name := flags.Arg(0)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(fs, *configPath)
		if err != nil {
			return err
		}
	}
	if *format != "" {
		cfg.Export.Format = *format
	}
	if *merge {
		cfg.Export.Merge = true
	}
	if *outputDir != "" {
		cfg.Export.OutputDir = *outputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(*verbose)

	input, closeInput, err := openInput(fs, name)
	if err != nil {
		return err
	}
	defer closeInput()

	opts := append(cfg.ParserOptions(), esplog.WithLogger(logger))
	result, err := esplog.Parse(ctx, input, opts...)
	if err != nil {
		if result == nil {
			return err
		}
		logger.Warn("writing partial result", "err", err)
	}

	base := "stdin"
	outdir := cfg.Export.OutputDir
	if name != "-" {
		base = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		if outdir == "" {
			outdir = filepath.Dir(name)
		}
	}
	if outdir == "" {
		outdir = "."
	}
	if err := fs.MkdirAll(outdir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	logger.Info("decoded log",
		"gyro", len(result.Gyro),
		"accel", len(result.Accel),
		"orientation", result.Orientation,
		"stopped", result.Stats.Stopped)

	switch cfg.Export.Format {
	case config.FormatProto:
		data, err := export.Marshal(result, export.CaptureID(name))
		if err != nil {
			return err
		}
		return writeFile(fs, filepath.Join(outdir, base+".pb"), func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
	default:
		if cfg.Export.Merge {
			return writeCSV(fs, filepath.Join(outdir, base+".csv"), export.Merge(result))
		}
		if err := writeCSV(fs, filepath.Join(outdir, base+"_gyro.csv"), result.Gyro); err != nil {
			return err
		}
		return writeCSV(fs, filepath.Join(outdir, base+"_accel.csv"), result.Accel)
	}
}

func writeCSV(fs kafero.Fs, path string, samples []esplog.Sample) error {
	return writeFile(fs, path, func(w io.Writer) error {
		return export.WriteCSV(w, samples)
	})
}

func writeFile(fs kafero.Fs, path string, write func(io.Writer) error) error {
	file, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	fmt.Printf("  -> %s\n", path)
	return nil
}
