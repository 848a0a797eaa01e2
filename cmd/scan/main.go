package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/alecthomas/kingpin.v2"

	"fpetkovski/arrow-dataset/config"
	"fpetkovski/arrow-dataset/dataset"
	"fpetkovski/arrow-dataset/expr"
	"fpetkovski/arrow-dataset/storage"
)

type Options struct {
	// Path to the YAML file describing the dataset.
	ConfigFile string
	// Address to expose metrics on. Metrics are not exposed when empty.
	HTTPListen string
	// Print the scanned records to stdout.
	Print bool
	// Hide the progress bar.
	Quiet bool
	Debug bool
}

func main() {
	app := kingpin.New("scan", "Scan a columnar dataset stored in object storage.")
	opts := Options{}
	if err := (&opts).BindFlags(app); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if opts.Debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	if opts.HTTPListen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			level.Info(logger).Log("msg", "serving metrics", "addr", opts.HTTPListen)
			if err := http.ListenAndServe(opts.HTTPListen, mux); err != nil {
				level.Error(logger).Log("msg", "metrics server stopped", "err", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, reg, opts); err != nil {
		level.Error(logger).Log("msg", "scan failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger log.Logger, reg prometheus.Registerer, opts Options) error {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	bucket, err := cfg.Bucket.NewBucket(ctx, logger, "dataset-scan")
	if err != nil {
		return err
	}
	defer bucket.Close()

	maxReadSize, err := cfg.Scan.MaxReadBytes()
	if err != nil {
		return err
	}
	fragments := make([]dataset.Fragment, 0, len(cfg.Files))
	for _, f := range cfg.Files {
		source := dataset.NewFileSource(bucket, f.Path, storage.WithMaxReadSize(int(maxReadSize)))
		fragment, err := dataset.NewFileFragment(ctx, source, fileFormat(f.Format))
		if err != nil {
			return err
		}
		level.Debug(logger).Log("msg", "inspected file", "fragment", fragment, "parts", fragment.NumParts(), "fields", len(fragment.Schema().Fields()))
		fragments = append(fragments, fragment)
	}

	options, err := scanOptions(cfg.Scan, fragments[0])
	if err != nil {
		return err
	}
	ds, err := dataset.NewDataset(options.Schema(), fragments...)
	if err != nil {
		return err
	}

	var sctxOpts []dataset.ScanContextOption
	if cfg.Scan.Concurrency > 0 {
		sctxOpts = append(sctxOpts, dataset.WithThreadPool(dataset.NewThreadPool(cfg.Scan.Concurrency)))
	}
	scanner, err := dataset.NewScanner(ds, options, dataset.NewScanContext(sctxOpts...),
		dataset.WithLogger(logger),
		dataset.WithMetrics(dataset.NewMetrics(reg)),
		dataset.WithReadahead(cfg.Scan.Readahead),
	)
	if err != nil {
		return err
	}

	reader, err := scanner.ToReader()
	if err != nil {
		return err
	}
	defer reader.Release()

	bar := progressbar.DefaultSilent(-1)
	if !opts.Quiet {
		bar = progressbar.Default(-1, "scanning rows")
	}
	var rows, batches int64
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := reader.Record()
		rows += rec.NumRows()
		batches++
		if opts.Print {
			for i, col := range rec.Columns() {
				fmt.Printf("%s: %v\n", rec.ColumnName(i), col)
			}
		}
		if err := bar.Add64(rec.NumRows()); err != nil {
			return err
		}
	}
	if withErr, ok := reader.(interface{ Err() error }); ok && withErr.Err() != nil {
		return withErr.Err()
	}
	_ = bar.Finish()

	level.Info(logger).Log("msg", "scan complete", "files", len(fragments), "batches", batches, "rows", rows)
	return nil
}

func scanOptions(cfg config.Scan, first dataset.Fragment) (*dataset.ScanOptions, error) {
	var opts []dataset.ScanOption
	matchers, err := cfg.Matchers()
	if err != nil {
		return nil, err
	}
	if len(matchers) > 0 {
		opts = append(opts, dataset.WithFilter(expr.FromMatchers(matchers...)))
	}
	if cfg.BatchSize > 0 {
		opts = append(opts, dataset.WithBatchSize(cfg.BatchSize))
	}

	options, err := dataset.NewScanOptions(first.Schema(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create scan options")
	}
	if len(cfg.Columns) == 0 {
		return options, nil
	}
	return options.Project(cfg.Columns...)
}

func fileFormat(format config.Format) dataset.FileFormat {
	if format == config.FormatIPC {
		return dataset.NewIPCFileFormat()
	}
	return dataset.NewParquetFileFormat(dataset.WithParallelColumnReads(true))
}

func (o *Options) BindFlags(app *kingpin.Application) error {
	app.Flag("config.file", "Path to the YAML file describing the dataset to scan.").
		Required().StringVar(&o.ConfigFile)
	app.Flag("http.listen", "Address to expose Prometheus metrics on.").
		Default("").StringVar(&o.HTTPListen)
	app.Flag("print", "Print scanned records to stdout.").BoolVar(&o.Print)
	app.Flag("quiet", "Do not show a progress bar.").BoolVar(&o.Quiet)
	app.Flag("debug", "Enable debug logging.").BoolVar(&o.Debug)

	_, err := app.Parse(os.Args[1:])
	if err != nil {
		return err
	}
	return nil
}
