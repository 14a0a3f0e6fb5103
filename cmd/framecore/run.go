package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/l1jgo/framecore/internal/config"
	"github.com/l1jgo/framecore/internal/core/arena"
	"github.com/l1jgo/framecore/internal/core/boot"
	"github.com/l1jgo/framecore/internal/core/clock"
	"github.com/l1jgo/framecore/internal/core/ecs"
	"github.com/l1jgo/framecore/internal/core/event"
	"github.com/l1jgo/framecore/internal/core/singleton"
	coresys "github.com/l1jgo/framecore/internal/core/system"
	"github.com/l1jgo/framecore/internal/data"
	"github.com/l1jgo/framecore/internal/persist"
	"github.com/l1jgo/framecore/internal/scripting"
	"github.com/l1jgo/framecore/internal/system"
)

// loadConfig resolves the config path. A missing file is only an error when
// a path was asked for explicitly.
func loadConfig() (*config.Config, error) {
	path := config.Path(configPath)
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == config.DefaultPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

func runLoop(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(out, cfg.Server.Name)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Core: hub, component routing, scheduler, shared state
	hub := event.NewHub()
	router := ecs.NewRouter(ecs.DefaultKinds, log)
	world := ecs.NewWorld(router, log)
	sched := coresys.NewScheduler(router, hub, log, coresys.Options{
		Isolate:       cfg.Scheduler.Isolate(),
		FaultLogRates: cfg.Scheduler.FaultLogRates(),
	})
	shared := singleton.NewRegistry(log)
	defer shared.Clear()

	clk := clock.New(sched, hub, log, clock.Options{
		Allocator:    arena.New(),
		Barrier:      world,
		Hooks:        boot.Default,
		ScratchBytes: cfg.Clock.ScratchBytes,
	})
	if err := singleton.Register(shared, clk); err != nil {
		return err
	}

	// 4. Frame journal
	printSection(out, "Database")
	if cfg.Database.Enabled() {
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK(out, "PostgreSQL connected")

		version, err := db.Migrate(dbCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printStat(out, "Schema version", version)

		journal := system.NewJournalSystem(hub, persist.NewJournalRepo(db), sched, log, cfg.Database.JournalBatch)
		if err := sched.Register(journal); err != nil {
			return err
		}
		printStat(out, "Journal batch", cfg.Database.JournalBatch)
	} else {
		printOK(out, "Frame journal disabled (no dsn)")
	}
	fmt.Fprintln(out)

	// 5. Scripted systems
	printSection(out, "Scripts")
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	engine.Attach(shared)

	scripted := 0
	if cfg.Scripting.Manifest != "" {
		table, err := data.LoadSystemManifest(cfg.Scripting.Manifest)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Warn("system manifest not found", zap.String("path", cfg.Scripting.Manifest))
		case err != nil:
			return fmt.Errorf("load system manifest: %w", err)
		default:
			systems, err := engine.LoadManifest(table)
			if err != nil {
				return fmt.Errorf("load scripts: %w", err)
			}
			for _, s := range systems {
				if err := sched.Register(s); err != nil {
					return err
				}
			}
			scripted = len(systems)
		}
	}
	printStat(out, "Lua systems", scripted)
	fmt.Fprintln(out)

	// 6. Frame loop
	printSection(out, "Clock")
	printStat(out, "Frame rate", cfg.Clock.FrameRate)
	printStat(out, "Fixed step", cfg.Clock.FixedStep.String())
	printStat(out, "Scratch bytes", cfg.Clock.ScratchBytes)
	printStat(out, "Mode", cfg.Scheduler.Mode)
	fmt.Fprintln(out)

	boot.Boot("announce", func() {
		printReady(out, fmt.Sprintf("Frame loop running (%d systems)", sched.Len()))
	})

	if maxFrames > 0 {
		limit := maxFrames
		event.Subscribe(hub, func(ev event.FrameAdvanced) {
			if ev.Frame >= limit {
				stop()
			}
		})
	}

	stepper := clock.NewStepper(cfg.Clock.FixedStep, cfg.Clock.MaxFixedSteps, cfg.Clock.TimeScale)
	if err := clk.Run(ctx, stepper, cfg.Clock.FrameInterval()); err != nil {
		return err
	}

	log.Info("shutting down",
		zap.Uint64("frames", clk.Frame()),
		zap.Uint64("faults", sched.Faults()))
	clk.Shutdown()
	return nil
}
