// relink finds files owned by the invoking user in the shared archive
// tree, deletes them, and replaces them with symbolic links to the same
// relative path in the long-term storage collection.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/samsrabin/inputdataTools/internal/config"
	"github.com/samsrabin/inputdataTools/internal/logger"
	"github.com/samsrabin/inputdataTools/internal/metrics"
	"github.com/samsrabin/inputdataTools/internal/obs"
	"github.com/samsrabin/inputdataTools/pkg/archive"
	"github.com/samsrabin/inputdataTools/pkg/ledger"
)

var (
	configPath    = flag.String("config", "", "Config file path (default /etc/inputdata.ini)")
	inputdataRoot = flag.String("inputdata-root", "", "Root of the shared archive tree (overrides config)")
	targetRoot    = flag.String("target-root", "", "Root of the tree the symlinks point into (overrides config)")
	dryRun        = flag.Bool("dry-run", false, "Show what would be done without making any changes")
	timing        = flag.Bool("timing", false, "Measure and display the execution time")
	verbose       = flag.Bool("verbose", false, "Enable verbose output (debug level)")
	quiet         = flag.Bool("quiet", false, "Quiet mode (show only warnings and errors)")
	metricsPort   = flag.Int("metrics-port", 0, "Serve Prometheus metrics on this port during the sweep (0 = off)")
)

func init() {
	flag.BoolVar(verbose, "v", false, "Shorthand for --verbose")
	flag.BoolVar(quiet, "q", false, "Shorthand for --quiet")
}

func main() {
	flag.Parse()

	if *verbose && *quiet {
		fmt.Fprintln(os.Stderr, "relink: --verbose and --quiet are mutually exclusive")
		os.Exit(2)
	}

	logger.InitGlobalLogger(logger.Config{
		Level:  logger.LevelFromFlags(*quiet, *verbose),
		Pretty: true,
	})
	log := logger.GetGlobalLogger().Component("relink")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	if *inputdataRoot != "" {
		cfg.InputdataRoot = *inputdataRoot
	}
	if *targetRoot != "" {
		cfg.StagingRoot = *targetRoot
	}

	// Items default to the whole archive tree
	items := flag.Args()
	if len(items) == 0 {
		items = []string{cfg.InputdataRoot}
	}
	items = archive.NormalizePaths(cfg.InputdataRoot, items)

	if err := archive.ValidateItems(items, cfg.InputdataRoot); err != nil {
		log.Fatal().Err(err).Msg("invalid items")
	}
	if err := archive.ValidateTargetRoot(cfg.StagingRoot, cfg.InputdataRoot); err != nil {
		log.Fatal().Err(err).Msg("invalid target root")
	}

	// Relink only touches files owned by the invoking user
	me, err := user.Current()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot determine current user")
	}
	uid64, err := strconv.ParseUint(me.Uid, 10, 32)
	if err != nil {
		log.Fatal().Str("uid", me.Uid).Msg("cannot parse UID")
	}
	uid := uint32(uid64)

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

	// The ledger lives on the shared filesystem; a user without access
	// still gets their relinks done, just unrecorded
	var led *ledger.Ledger
	if !*dryRun {
		led, err = ledger.Open(cfg.LedgerDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", cfg.LedgerDir).Msg("publication ledger unavailable, relinks will not be recorded")
		} else {
			defer led.Close()
		}
	}

	log.LogRunStart("relink", cfg.InputdataRoot, cfg.StagingRoot, *dryRun)
	start := time.Now()

	relinker := &archive.Relinker{
		InputdataRoot: cfg.InputdataRoot,
		TargetRoot:    cfg.StagingRoot,
		DryRun:        *dryRun,
		Log:           log,
		Metrics:       m,
		Ledger:        led,
	}

	for _, item := range items {
		relinker.RelinkOwnedFiles(item, uid)
	}

	if *timing {
		log.LogRunDone("relink", time.Since(start))
	}
}
