package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"haruki-cutscenes/api"
	"haruki-cutscenes/config"
	"haruki-cutscenes/updater"
	"haruki-cutscenes/utils"
	"haruki-cutscenes/utils/cloud"
	"haruki-cutscenes/utils/exporter"
	"haruki-cutscenes/utils/keys"
	harukiLogger "haruki-cutscenes/utils/logger"
)

const usage = `Usage: haruki-cutscenes <command> [flags]

Commands:
  serve    run the HTTP API
  demux    demux .usm files (a file or a folder)
  hca      decode standalone .hca files (a file or a folder)
  update   download the key table
  version  print the version
`

type commonFlags struct {
	configPath  string
	output      string
	key         string
	keyA        string
	keyB        string
	audioFormat string
	merge       bool
	noCleanup   bool
}

func parseFlags(name string, args []string) (*commonFlags, []string, error) {
	f := &commonFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", config.DefaultConfigFile, "config file")
	fs.StringVar(&f.output, "o", "", "output folder")
	fs.StringVar(&f.key, "key", "", "decryption key, hex with 0x prefix or decimal")
	fs.StringVar(&f.keyA, "a", "", "first key half, 8 hex digits")
	fs.StringVar(&f.keyB, "b", "", "second key half, 8 hex digits")
	fs.StringVar(&f.audioFormat, "audio-format", "", "wav, mp3, flac or ogg")
	fs.BoolVar(&f.merge, "merge", false, "merge the demuxed streams into an mkv")
	fs.BoolVar(&f.noCleanup, "no-cleanup", false, "keep intermediate files after merging")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

// loadConfig reads the config file. A missing default file falls back to
// the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && path == config.DefaultConfigFile {
		return config.Default(), nil
	}
	return cfg, err
}

func (f *commonFlags) override() (*keys.Key, error) {
	switch {
	case f.key != "":
		k, err := keys.ParseKey(f.key)
		if err != nil {
			return nil, err
		}
		return &k, nil
	case f.keyA != "" || f.keyB != "":
		k, err := keys.FromHalves(f.keyA, f.keyB)
		if err != nil {
			return nil, err
		}
		return &k, nil
	}
	return nil, nil
}

func (f *commonFlags) apply(cfg *config.Config) {
	if f.output != "" {
		cfg.Demux.OutputDir = f.output
	}
	if f.audioFormat != "" {
		cfg.Demux.AudioFormat = f.audioFormat
	}
	if f.merge {
		cfg.Demux.Merge = true
	}
	if f.noCleanup {
		cfg.Demux.NoCleanup = true
	}
}

func setupLogging(cfg *config.Config) (*harukiLogger.Logger, func(), error) {
	var loggerWriter io.Writer = os.Stdout
	closer := func() {}
	if cfg.Backend.MainLogFile != "" {
		logFile, err := os.OpenFile(cfg.Backend.MainLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open main log file: %w", err)
		}
		loggerWriter = io.MultiWriter(os.Stdout, logFile)
		closer = func() { _ = logFile.Close() }
	}
	harukiLogger.SetDefaultWriter(loggerWriter)
	return harukiLogger.NewLogger("Main", cfg.Backend.LogLevel, loggerWriter), closer, nil
}

// loadTable reads the local key table. A missing table is not fatal: runs
// with an explicit key or unencrypted inputs still work.
func loadTable(cfg *config.Config, mainLogger *harukiLogger.Logger) *keys.Table {
	table, err := keys.LoadTable(cfg.KeyTable.Path)
	if err != nil {
		mainLogger.Warnf("Key table %s not loaded: %v", cfg.KeyTable.Path, err)
		return nil
	}
	mainLogger.Infof("Loaded key table with %d videos", table.Len())
	return table
}

func newPipeline(cfg *config.Config, table *keys.Table, override *keys.Key, mainLogger *harukiLogger.Logger) (*exporter.Pipeline, error) {
	record, err := exporter.LoadRecord(cfg.Demux.RecordFile)
	if err != nil {
		return nil, err
	}
	uploader, err := cloud.NewUploader(cfg)
	if err != nil {
		return nil, err
	}
	if uploader.Enabled() {
		mainLogger.Infof("Uploading outputs to %d remote storages", len(cfg.RemoteStorages))
	}
	return &exporter.Pipeline{
		Options:           exporter.OptionsFromConfig(cfg),
		Keys:              exporter.KeySource{Table: table, Override: override},
		Record:            record,
		Uploader:          uploader,
		RemoveAfterUpload: cfg.Demux.RemoveAfterUpload,
		Concurrency:       cfg.Demux.Concurrency,
	}, nil
}

func printReports(reports []exporter.Report) int {
	failed := 0
	for _, r := range reports {
		switch {
		case r.Skipped:
			fmt.Printf("SKIP  %s\n", r.File)
		case r.OK():
			fmt.Printf("OK    %s\n", r.File)
		default:
			failed++
			fmt.Printf("FAIL  %s [%s] %s\n", r.File, r.Kind, r.Message())
		}
	}
	fmt.Printf("%d files, %d failed\n", len(reports), failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func runExport(ctx context.Context, name string, args []string) int {
	f, rest, err := parseFlags(name, args)
	if err != nil {
		return 2
	}
	if len(rest) != 1 {
		fmt.Fprintf(os.Stderr, "%s needs exactly one input path\n", name)
		return 2
	}
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	f.apply(cfg)
	mainLogger, closeLog, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	override, err := f.override()
	if err != nil {
		mainLogger.Errorf("Invalid key: %v", err)
		return 2
	}
	if !exporter.ValidAudioFormat(cfg.Demux.AudioFormat) {
		mainLogger.Errorf("Unsupported audio format %q", cfg.Demux.AudioFormat)
		return 2
	}
	ext := ".usm"
	if name == "hca" {
		ext = ".hca"
	}
	files, err := utils.ExpandInputs(rest[0], ext)
	if err != nil {
		mainLogger.Errorf("Failed to read input: %v", err)
		return 1
	}
	if len(files) == 0 {
		mainLogger.Warnf("No %s files found in %s", ext, rest[0])
		return 0
	}

	var table *keys.Table
	if override == nil {
		table = loadTable(cfg, mainLogger)
	}
	p, err := newPipeline(cfg, table, override, mainLogger)
	if err != nil {
		mainLogger.Errorf("Failed to set up export: %v", err)
		return 1
	}
	var reports []exporter.Report
	if name == "hca" {
		reports = p.ExportHCAFiles(ctx, files)
	} else {
		reports = p.ExportContainers(ctx, files)
	}
	return printReports(reports)
}

func runUpdate(ctx context.Context, args []string) int {
	f, _, err := parseFlags("update", args)
	if err != nil {
		return 2
	}
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	mainLogger, closeLog, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	table, err := updater.NewKeyTableUpdater(ctx, cfg.KeyTable, cfg.Proxy).Update()
	if err != nil {
		mainLogger.Errorf("Failed to update key table: %v", err)
		return 1
	}
	mainLogger.Infof("Key table %s updated, %d videos", cfg.KeyTable.Path, table.Len())
	return 0
}

func runServe(args []string) int {
	f, _, err := parseFlags("serve", args)
	if err != nil {
		return 2
	}
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	f.apply(cfg)
	mainLogger, closeLog, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()
	mainLogger.Infof("========================= Haruki Cutscenes %s =========================", config.Version)
	mainLogger.Infof("Powered By Haruki Dev Team")

	record, err := exporter.LoadRecord(cfg.Demux.RecordFile)
	if err != nil {
		mainLogger.Errorf("Failed to load export record: %v", err)
		return 1
	}
	uploader, err := cloud.NewUploader(cfg)
	if err != nil {
		mainLogger.Errorf("Failed to set up remote storages: %v", err)
		return 1
	}
	server := api.NewServer(cfg, loadTable(cfg, mainLogger), record, uploader)
	app := api.NewApp(cfg)

	if cfg.Backend.AccessLog != "" {
		logCfg := logger.Config{Format: cfg.Backend.AccessLog}
		if cfg.Backend.AccessLogPath != "" {
			accessLogFile, err := os.OpenFile(cfg.Backend.AccessLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				mainLogger.Errorf("failed to open access log file: %v", err)
				return 1
			}
			defer func(accessLogFile *os.File) {
				_ = accessLogFile.Close()
			}(accessLogFile)
			logCfg.Stream = accessLogFile
		}
		app.Use(logger.New(logCfg))
	}

	server.RegisterRoutes(app)

	addr := fmt.Sprintf("%s:%d", cfg.Backend.Host, cfg.Backend.Port)
	listenCfg := fiber.ListenConfig{}
	if cfg.Backend.SSL {
		listenCfg.CertFile = cfg.Backend.SSLCert
		listenCfg.CertKeyFile = cfg.Backend.SSLKey
	}
	if err := app.Listen(addr, listenCfg); err != nil {
		mainLogger.Errorf("failed to start server: %v", err)
		return 1
	}
	return 0
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var code int
	switch cmd := os.Args[1]; cmd {
	case "serve":
		code = runServe(os.Args[2:])
	case "demux", "hca":
		code = runExport(ctx, cmd, os.Args[2:])
	case "update":
		code = runUpdate(ctx, os.Args[2:])
	case "version":
		fmt.Println(config.Version)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		code = 2
	}
	stop()
	os.Exit(code)
}
