// Copyright 2025 The placeserve Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the placeserve geocoder suggest server.

placeserve answers type-ahead place name queries: given the first letters of a
city, town, village or hamlet it returns the best matching places, ranked by
match quality and importance. It serves HTTP by default, can speak MessagePack
IPC over stdin/stdout for embedding in other processes, and has an interactive
CLI mode for debugging the ranking.

# Usage

Serve HTTP with the config file defaults:

	placeserve

Use a custom data directory, listen address and debug logging:

	placeserve -data /srv/places -addr :9090 -d

Serve IPC instead of HTTP:

	placeserve -ipc

Run the interactive prompt:

	placeserve -c -size 5

Compile the data directory into a snapshot and exit:

	placeserve -data /srv/places -write-snapshot /srv/places.msgpack

Start from the snapshot only:

	placeserve -data "" -snapshot /srv/places.msgpack

# Corpus

The data directory holds JSON lines files (.jsonl, .ndjson, .json), one place
per line, and optionally msgpack snapshots written by -write-snapshot:

	{"id":"240109189","name":"Dresden","type":"city","center":[13.738,51.049],"population":556000}

Files are read concurrently and merged in file name order. Malformed lines and
duplicate IDs are logged and skipped; they never stop a load.

# HTTP

	GET /geocoder?suggest=true&q=dresd&size=5

returns

	{"hits":[{"id":"240109189","name":"Dresden","type":"city","rank":1,"match":"prefix",...}],"took":0.08}

Other routes are /health, /stats, /metrics (Prometheus) and POST /admin/reload.

# Configuration

Runtime configuration is read from a TOML file, created with defaults on first
start at ~/.config/placeserve/config.toml:

	[server]
	port = 8080
	default_size = 10
	max_size = 50

	[index]
	data_dir = "data/"
	refresh_interval = "10m"

	[suggest]
	fuzzy_max_distance = 2

	[log]
	level = "warn"
	formatter = "text"

Flags override the file.

# Command Line Flags

	-config string
	    Path to a config file
	-data string
	    Directory containing corpus files
	-snapshot string
	    msgpack snapshot used when no data directory is set
	-addr string
	    HTTP listen address (default host:port from config)
	-size int
	    Number of hits in CLI mode (default from config)
	-d  Enable debug logging
	-c  Run the interactive CLI
	-ipc
	    Serve MessagePack IPC on stdin/stdout
	-write-snapshot string
	    Write the loaded corpus to a snapshot file and exit
	-version
	    Show current version
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/bastiangx/placeserve/internal/cli"
	"github.com/bastiangx/placeserve/internal/httpapi"
	"github.com/bastiangx/placeserve/internal/logger"
	"github.com/bastiangx/placeserve/internal/metrics"
	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/config"
	"github.com/bastiangx/placeserve/pkg/corpus"
	"github.com/bastiangx/placeserve/pkg/server"
	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.3.0"
	AppName = "placeserve"
	gh      = "https://github.com/bastiangx/placeserve"
)

// main wires config, corpus, engine and the selected front end.
// It does not implement logic for them and only manages the flow.
func main() {
	showVersion := flag.Bool("version", false, "Show current version")
	configPath := flag.String("config", "", "Path to a config file")
	dataDir := flag.String("data", "", "Directory containing corpus files (default from config)")
	snapshotPath := flag.String("snapshot", "", "msgpack snapshot used when no data directory is set")
	addr := flag.String("addr", "", "HTTP listen address (default host:port from config)")
	size := flag.Int("size", 0, "Number of hits in CLI mode (default from config)")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	ipcMode := flag.Bool("ipc", false, "Serve MessagePack IPC on stdin/stdout")
	writeSnapshot := flag.String("write-snapshot", "", "Write the loaded corpus to this snapshot file and exit")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
	}

	cfg, activePath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Setup(cfg.Log.Level, cfg.Log.Formatter, *debugMode); err != nil {
		log.Warnf("Invalid [log] config: %v", err)
	}
	log.Debugf("Using config: %s", config.GetActiveConfigPath(activePath))

	// flags that were set explicitly win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.Index.DataDir = *dataDir
		case "snapshot":
			cfg.Index.SnapshotPath = *snapshotPath
		}
	})

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}
	for k, v := range pathResolver.GetRuntimeInfo() {
		log.Debug("runtime", k, v)
	}

	resolvedDataDir := ""
	if cfg.Index.DataDir != "" {
		resolvedDataDir = pathResolver.GetDataDir(cfg.Index.DataDir)
	}
	resolvedSnapshot := pathResolver.ResolveRelativePath(cfg.Index.SnapshotPath)
	if resolvedSnapshot != "" && !utils.HasFilesWithExt(resolvedDataDir, utils.CorpusExtensions...) {
		log.Debugf("No corpus files in %q, falling back to snapshot", resolvedDataDir)
		resolvedDataDir = ""
	}
	log.Debugf("Corpus: data dir=%q snapshot=%q", resolvedDataDir, resolvedSnapshot)

	loader := corpus.NewLoader(resolvedDataDir, resolvedSnapshot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *writeSnapshot != "" {
		if err := compileSnapshot(ctx, loader, *writeSnapshot); err != nil {
			log.Fatalf("Failed to write snapshot: %v", err)
		}
		return
	}

	m := metrics.New()
	engineOpts := cfg.EngineOptions()
	engineOpts.Observer = m
	engine := suggest.NewEngine(engineOpts)

	refresher := corpus.NewRefresher(loader, engine, corpus.RefresherOptions{
		Interval:   cfg.RefreshEvery(),
		MaxRetries: cfg.Index.MaxRetries,
	})
	status, err := refresher.Reload(ctx)
	if err != nil {
		if *cliMode {
			log.Fatalf("Failed to load corpus: %v", err)
		}
		log.Errorf("Starting without an index: %v", err)
	}
	go refresher.Run(ctx)

	// CLI would be mainly used for testing and dbg purposes.
	if *cliMode {
		log.SetReportTimestamp(false)
		n := *size
		if n <= 0 {
			n = cfg.CLI.DefaultSize
		}
		if err := cli.NewInputHandler(engine, n, cfg.Server.MaxQueryLen).Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	if *ipcMode {
		log.Debug("spawning IPC")
		srv := server.NewServer(engine, server.Options{
			Reloader:    refresher,
			Observer:    m,
			DefaultSize: cfg.Server.DefaultSize,
			MaxSize:     cfg.Server.MaxSize,
			MaxQueryLen: cfg.Server.MaxQueryLen,
		})
		if err := srv.Start(ctx); err != nil {
			log.Fatalf("IPC server error: %v", err)
		}
		return
	}

	listen := *addr
	if listen == "" {
		listen = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	}
	router := httpapi.NewRouter(httpapi.Options{
		Engine:   engine,
		Reloader: refresher,
		Metrics:  m,
		Server:   cfg.Server,
	})

	showStartupInfo(listen, resolvedDataDir, status)

	if err := httpapi.Serve(ctx, listen, router); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}

// compileSnapshot loads the corpus once and stores it as a msgpack snapshot.
func compileSnapshot(ctx context.Context, loader corpus.Source, path string) error {
	res, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	if err := corpus.WriteSnapshot(path, res.Records); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s records (%d skipped) to %s\n",
		utils.FormatWithCommas(int64(len(res.Records))), len(res.Skipped), path)
	return nil
}

func printVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[ placeserve ] Fast place name suggestions")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("use -h or --help to see available options")
	logger.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(addr, dataDir string, status corpus.ReloadStatus) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("============")
	println(" placeserve ")
	println("============")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("data dir: ( %s )", dataDir)
	log.Infof("records: %s (gen %d)", utils.FormatWithCommas(int64(status.Records)), status.Generation)
	log.Infof("listening: http://%s/geocoder", addr)
	println("============")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
