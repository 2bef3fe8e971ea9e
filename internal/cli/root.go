package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/constellation-allocator/core"
	"github.com/signalsfoundry/constellation-allocator/internal/allocsvc"
	"github.com/signalsfoundry/constellation-allocator/internal/logging"
	"github.com/signalsfoundry/constellation-allocator/internal/observability"
	"github.com/signalsfoundry/constellation-allocator/internal/store"
	"github.com/signalsfoundry/constellation-allocator/kb"
)

const defaultScenario = "examples/scenario.json"

var (
	scenarioPath    string
	dbPath          string
	maxSatellites   int
	maxApplications int
	verbose         bool

	// RootCmd is the root command for allocator
	RootCmd = &cobra.Command{
		Use:   "allocator",
		Short: "Place applications on satellites with exact and greedy allocators",
		Long: `allocator assigns compute applications to satellites whose coverage
disk contains them at a given time step, without exceeding any satellite's
CPU or memory.

Two strategies are available:
  • exact   backtracking search for the maximum number of placements
  • greedy  single pass, each application goes to the roomiest covering satellite

Scenarios are JSON files with explicit satellite tracks or TLEs. Runs can be
recorded to a SQLite history database with --db.`,
		Example: `  # Allocate step 1 of the bundled demo scenario with both strategies
  allocator run --scenario examples/scenario.json --step 1

  # Sweep every step and record results
  allocator sweep --db history.db

  # Show recorded runs
  allocator history --db history.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&scenarioPath, "scenario", "", "scenario JSON file (default: $ALLOC_SCENARIO or "+defaultScenario+")")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "run history database (default: $ALLOC_DB; empty disables history)")
	RootCmd.PersistentFlags().IntVar(&maxSatellites, "max-satellites", 0, "reject scenarios with more satellites (0 = unlimited)")
	RootCmd.PersistentFlags().IntVar(&maxApplications, "max-applications", 0, "reject runs with more applications (0 = unlimited)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command with tracing configured from the
// environment and cancellation on interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := newLogger()
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	return RootCmd.ExecuteContext(ctx)
}

// newLogger logs to stderr at warn level unless LOG_LEVEL or --verbose say
// otherwise; stdout is reserved for results.
func newLogger() logging.Logger {
	cfg := logging.ConfigFromEnv()
	if cfg.Level == "" {
		cfg.Level = "warn"
	}
	if verbose {
		cfg.Level = "debug"
	}
	return logging.New(cfg)
}

func getScenarioPath() string {
	if scenarioPath != "" {
		return scenarioPath
	}
	if env := os.Getenv("ALLOC_SCENARIO"); env != "" {
		return env
	}
	return defaultScenario
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return os.Getenv("ALLOC_DB")
}

func limits() core.Limits {
	return core.Limits{MaxSatellites: maxSatellites, MaxApplications: maxApplications}
}

// loadKB decodes the scenario file into a fresh knowledge base.
func loadKB() (*kb.KnowledgeBase, error) {
	path := getScenarioPath()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario: %w", err)
	}
	defer f.Close()

	sc, err := core.DecodeScenario(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := kb.NewKnowledgeBase()
	if err := base.LoadScenario(sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return base, nil
}

// openHistory opens the history database when one is configured. A nil
// store means history is disabled.
func openHistory() (*store.Store, error) {
	path := getDBPath()
	if path == "" {
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return st, nil
}

// newLocalService wires a service over the scenario file and optional
// history. The returned close func releases the history database.
func newLocalService(log logging.Logger, exact core.ExactConfig) (*allocsvc.Service, *kb.KnowledgeBase, func(), error) {
	base, err := loadKB()
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := openHistory()
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []allocsvc.Option{
		allocsvc.WithLimits(limits()),
		allocsvc.WithExactConfig(exact),
		allocsvc.WithLogger(log),
	}
	closeFn := func() {}
	if st != nil {
		opts = append(opts, allocsvc.WithHistory(st))
		closeFn = func() { st.Close() }
	}
	return allocsvc.NewService(base, opts...), base, closeFn, nil
}
