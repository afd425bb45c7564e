// rimport publishes staged input data files: it copies each file from the
// shared archive tree into the long-term storage collection, replaces the
// archive copy with a symbolic link, verifies both steps, and records the
// publication in the ledger.
//
// The import step runs under the shared import account; its login stack
// provides the two-factor gate. rimport enforces the reachable half by
// refusing to run as anyone else, and surfaces authentication and
// permission failures directly with no retry.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/samsrabin/inputdataTools/internal/config"
	"github.com/samsrabin/inputdataTools/internal/logger"
	"github.com/samsrabin/inputdataTools/internal/metrics"
	"github.com/samsrabin/inputdataTools/internal/obs"
	"github.com/samsrabin/inputdataTools/pkg/archive"
	"github.com/samsrabin/inputdataTools/pkg/ledger"
	"github.com/samsrabin/inputdataTools/pkg/naming"
)

var (
	configPath    = flag.String("config", "", "Config file path (default /etc/inputdata.ini)")
	inputdataRoot = flag.String("inputdata-root", "", "Root of the shared archive tree (overrides config)")
	filelist      = flag.String("filelist", "", "File containing paths to import, one per line")
	check         = flag.Bool("check", false, "Report what would happen without making any changes")
	timing        = flag.Bool("timing", false, "Measure and display the execution time")
	verbose       = flag.Bool("verbose", false, "Enable verbose output (debug level)")
	quiet         = flag.Bool("quiet", false, "Quiet mode (show only warnings and errors)")
	metricsPort   = flag.Int("metrics-port", 0, "Serve Prometheus metrics on this port during the run (0 = off)")
)

func init() {
	flag.BoolVar(verbose, "v", false, "Shorthand for --verbose")
	flag.BoolVar(quiet, "q", false, "Shorthand for --quiet")
}

func main() {
	flag.Parse()

	if *verbose && *quiet {
		fmt.Fprintln(os.Stderr, "rimport: --verbose and --quiet are mutually exclusive")
		os.Exit(2)
	}

	logger.InitGlobalLogger(logger.Config{
		Level:  logger.LevelFromFlags(*quiet, *verbose),
		Pretty: true,
	})
	log := logger.GetGlobalLogger().Component("rimport")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	if *inputdataRoot != "" {
		cfg.InputdataRoot = *inputdataRoot
	}

	// Imports run as the shared account only
	me, err := user.Current()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot determine current user")
	}
	if me.Username != cfg.SharedUser {
		log.Fatal().
			Err(archive.ErrWrongUser).
			Str("user", me.Username).
			Str("required", cfg.SharedUser).
			Msg("imports must run as the shared account")
	}

	// Collect files from the command line and/or a filelist
	files := flag.Args()
	if *filelist != "" {
		listed, err := archive.ReadFilelist(*filelist)
		if err != nil {
			log.Fatal().Err(err).Str("filelist", *filelist).Msg("cannot read filelist")
		}
		files = append(files, listed...)
	}
	if len(files) == 0 {
		log.Fatal().Msg("no files to import (give paths or --filelist)")
	}

	files = archive.NormalizePaths(cfg.InputdataRoot, files)
	if err := archive.ValidateItems(files, cfg.InputdataRoot); err != nil {
		log.Fatal().Err(err).Msg("invalid items")
	}

	var m *metrics.Metrics
	if *metricsPort != 0 {
		m = metrics.NewMetrics()
		server := obs.NewServer(*metricsPort, log)
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("observability server stopped")
			}
		}()
	}

	// Check mode must not create ledger state, but an existing ledger is
	// still consulted so a would-be filename reuse gets reported
	var led *ledger.Ledger
	if *check {
		if _, err := os.Stat(cfg.LedgerDir); err == nil {
			led, err = ledger.Open(cfg.LedgerDir)
			if err != nil {
				log.Fatal().Err(err).Str("dir", cfg.LedgerDir).Msg("cannot open publication ledger")
			}
			defer led.Close()
		}
	} else {
		led, err = ledger.Open(cfg.LedgerDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.LedgerDir).Msg("cannot open publication ledger")
		}
		defer led.Close()
	}
	if led != nil && m != nil {
		size, _ := led.SizeOnDisk()
		m.UpdateLedgerStats(led.Len(), size)
	}

	log.LogRunStart("rimport", cfg.InputdataRoot, cfg.StagingRoot, *check)
	start := time.Now()

	stager := &archive.Stager{
		InputdataRoot: cfg.InputdataRoot,
		StagingRoot:   cfg.StagingRoot,
		Check:         *check,
		Log:           log,
		Metrics:       m,
		Ledger:        led,
	}

	failed := 0
	for _, file := range files {
		// Convention violations are for human review, not a hard stop
		if !naming.HasCreationDate(file) {
			log.Warn().Str("file", file).Msg("filename has no cYYMMDD creation-date suffix")
		}

		fileStart := time.Now()
		err := stager.StageFile(file)
		log.LogOperation("import", file, time.Since(fileStart), err)
		if err != nil {
			failed++
		}
	}

	if *timing {
		log.LogRunDone("rimport", time.Since(start))
	}

	if failed > 0 {
		log.Error().Int("failed", failed).Int("total", len(files)).Msg("some imports failed")
		os.Exit(1)
	}
}
