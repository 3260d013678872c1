package cli

import (
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/looper/internal/beads"
	"github.com/tOgg1/looper/internal/config"
	"github.com/tOgg1/looper/internal/driver"
	"github.com/tOgg1/looper/internal/harness"
	"github.com/tOgg1/looper/internal/loopdef"
	"github.com/tOgg1/looper/internal/models"
	"github.com/tOgg1/looper/internal/names"
	"github.com/tOgg1/looper/internal/record"
	"github.com/tOgg1/looper/internal/session"
	"github.com/tOgg1/looper/internal/strategy"
)

var (
	runMaxIterations int
	runNewSession    bool
)

func init() {
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "iteration budget (default from config, 25)")
	runCmd.Flags().BoolVar(&runNewSession, "new-session", false, "generate a unique session name instead of reusing <loop-type>")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <loop-type> [session]",
	Short: "Run a loop session until its completion strategy fires",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		// Project-level overrides (committed alongside the loop definitions)
		// beat user config.
		settings, err := config.LoadProjectSettings(cfg.Global.ProjectDir)
		if err != nil {
			return err
		}
		settings.Apply(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		loopType := args[0]
		sessionName := loopType
		if len(args) > 1 {
			sessionName = args[1]
		} else if runNewSession {
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			sessionName = loopType + "-" + names.Random(rng)
		}

		maxIterations := runMaxIterations
		if maxIterations <= 0 {
			maxIterations = cfg.LoopDefaults.MaxIterations
		}

		loopCfg, err := loopdef.Load(cfg.Global.ProjectDir, loopType)
		if err != nil {
			return err
		}
		if loopCfg.Delay == 0 {
			loopCfg.Delay = cfg.LoopDefaults.Delay
		}

		if err := harness.Check(cfg.Agent); err != nil {
			return err
		}

		deps := strategy.Deps{MaxIterations: maxIterations}
		if loopCfg.Strategy == models.StrategyBeadsEmpty {
			queue := beads.NewClient(cfg.Agent.BeadsBinary)
			if err := queue.Check(); err != nil {
				return err
			}
			deps.Queue = queue
		}

		strat, err := strategy.New(loopCfg, deps)
		if err != nil {
			return err
		}

		store := session.NewStore(cfg.Global.ProjectDir, sessionName)
		if err := store.Init(loopType); err != nil {
			return err
		}
		defer store.Close()

		recorder := record.NewRecorder(cfg.Global.ProjectDir, record.NewNotifier(cfg.Notify))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		d := driver.New(cfg, loopCfg, store, strat, recorder, maxIterations)
		outcome, err := d.Run(ctx)
		if err != nil {
			return err
		}

		switch outcome.Status {
		case models.SessionStatusComplete:
			fmt.Fprintf(cmd.OutOrStdout(), "session %s complete after %d iterations: %s\n",
				sessionName, outcome.Iterations, outcome.Reason)
			return nil
		case models.SessionStatusMaxIterations:
			return &ExitError{Code: 1, Err: fmt.Errorf("session %s stopped: %s", sessionName, outcome.Reason)}
		case models.SessionStatusKilled:
			return &ExitError{Code: 130, Err: fmt.Errorf("session %s killed: %s", sessionName, outcome.Reason)}
		default:
			return fmt.Errorf("session %s ended in unexpected status %s", sessionName, outcome.Status)
		}
	},
}
