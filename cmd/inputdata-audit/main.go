// inputdata-audit verifies the publication policy invariants without
// modifying anything: relinked paths resolve to readable content in the
// collection, files awaiting relink are owned by the relink user,
// filenames carry a creation-date suffix, and no ledger path was ever
// recorded with two different content digests.
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
	stagingRoot   = flag.String("staging-root", "", "Root of the long-term collection (overrides config)")
	relinkUser    = flag.String("relink-user", "", "User expected to own files awaiting relink (default: current user)")
	timing        = flag.Bool("timing", false, "Measure and display the execution time")
	verbose       = flag.Bool("verbose", false, "Enable verbose output (debug level)")
	quiet         = flag.Bool("quiet", false, "Quiet mode (show only warnings and errors)")
	metricsPort   = flag.Int("metrics-port", 0, "Serve Prometheus metrics on this port during the audit (0 = off)")
)

func init() {
	flag.BoolVar(verbose, "v", false, "Shorthand for --verbose")
	flag.BoolVar(quiet, "q", false, "Shorthand for --quiet")
}

func main() {
	flag.Parse()

	if *verbose && *quiet {
		fmt.Fprintln(os.Stderr, "inputdata-audit: --verbose and --quiet are mutually exclusive")
		os.Exit(2)
	}

	logger.InitGlobalLogger(logger.Config{
		Level:  logger.LevelFromFlags(*quiet, *verbose),
		Pretty: true,
	})
	log := logger.GetGlobalLogger().Component("audit")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	if *inputdataRoot != "" {
		cfg.InputdataRoot = *inputdataRoot
	}
	if *stagingRoot != "" {
		cfg.StagingRoot = *stagingRoot
	}

	uid, err := resolveRelinkUID(*relinkUser)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot resolve relink user")
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

	// The audit never mutates: only open a ledger that already exists
	var led *ledger.Ledger
	if _, err := os.Stat(cfg.LedgerDir); err == nil {
		led, err = ledger.Open(cfg.LedgerDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.LedgerDir).Msg("cannot open publication ledger")
		}
		defer led.Close()
	} else {
		log.Warn().Str("dir", cfg.LedgerDir).Msg("no publication ledger found, ledger checks skipped")
	}

	items := flag.Args()
	if len(items) == 0 {
		items = []string{cfg.InputdataRoot}
	}
	items = archive.NormalizePaths(cfg.InputdataRoot, items)

	log.LogRunStart("inputdata-audit", cfg.InputdataRoot, cfg.StagingRoot, true)
	start := time.Now()

	auditor := &archive.Auditor{
		InputdataRoot: cfg.InputdataRoot,
		StagingRoot:   cfg.StagingRoot,
		RelinkUID:     uid,
		Log:           log,
		Metrics:       m,
		Ledger:        led,
	}

	violations := 0
	for _, item := range items {
		report, err := auditor.Run(item)
		if err != nil {
			log.Fatal().Err(err).Str("item", item).Msg("audit failed")
		}
		violations += len(report.Violations)
		log.Info().
			Str("item", item).
			Int("files_checked", report.FilesChecked).
			Int("links_checked", report.LinksChecked).
			Int("violations", len(report.Violations)).
			Msg("audit finished")
	}

	if *timing {
		log.LogRunDone("inputdata-audit", time.Since(start))
	}

	if violations > 0 {
		os.Exit(1)
	}
}

// resolveRelinkUID maps a username to a UID, defaulting to the current user
func resolveRelinkUID(username string) (uint32, error) {
	var u *user.User
	var err error
	if username == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(username)
	}
	if err != nil {
		return 0, err
	}

	uid64, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("cannot parse UID %q: %w", u.Uid, err)
	}
	return uint32(uid64), nil
}
