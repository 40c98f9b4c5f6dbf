package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/gocoro/internal/driver"
	"github.com/me/gocoro/internal/journal"
	"github.com/me/gocoro/internal/server"
	"github.com/me/gocoro/internal/workload"
	"github.com/me/gocoro/pkg/coro"
	"github.com/me/gocoro/pkg/model"
)

type runOptions struct {
	capacity  int
	tick      time.Duration
	maxTicks  uint64
	addr      string
	noJournal bool
	keepAlive bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <workload.yaml>",
		Short: "Run a workload until its tasks finish",
		Long: `Load a workload file, start its autostart tasks and drive the scheduler
on a fixed tick until no task is active, --max-ticks is reached or the
process is interrupted. Every task start and finish is journaled unless
--no-journal is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("tick") {
				opts.tick = cfg.TickInterval
			}
			if !flags.Changed("max-ticks") {
				opts.maxTicks = cfg.MaxTicks
			}
			if !flags.Changed("addr") {
				opts.addr = cfg.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorkload(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.capacity, "capacity", 0, "Scheduler slots (default: workload capacity, then config)")
	cmd.Flags().DurationVar(&opts.tick, "tick", 10*time.Millisecond, "Time between scheduler passes")
	cmd.Flags().Uint64Var(&opts.maxTicks, "max-ticks", 0, "Stop after this many passes (0 = unlimited)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Serve the status API on this address while running")
	cmd.Flags().BoolVar(&opts.noJournal, "no-journal", false, "Do not record the run")
	cmd.Flags().BoolVar(&opts.keepAlive, "keep-alive", false, "Keep ticking when no task is active")

	return cmd
}

func runWorkload(ctx context.Context, out io.Writer, path string, opts runOptions) error {
	w, err := workload.Load(path)
	if err != nil {
		return err
	}

	capacity := opts.capacity
	if capacity == 0 {
		capacity = w.Capacity
	}
	if capacity == 0 {
		capacity = cfg.Capacity
	}

	runID := model.NewRunID()
	schedOpts := []coro.Option{coro.WithLogger(logger)}

	var store journal.Store
	var rec *journal.Recorder
	if !opts.noJournal {
		st, err := openJournal(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		store = st
		rec = journal.NewRecorder(ctx, st, runID, logger)
		schedOpts = append(schedOpts, coro.WithObserver(rec))
	}

	sched := coro.New(schedOpts...)
	if err := sched.Initialize(capacity); err != nil {
		return fmt.Errorf("initialize scheduler with capacity %d: %w", capacity, err)
	}

	rt, err := workload.Build(w, sched, workload.WithLogger(logger), workload.WithOutput(out))
	if err != nil {
		terminate(sched)
		return err
	}

	run := &model.Run{
		ID:        runID,
		Workload:  w.Name,
		Capacity:  capacity,
		State:     model.RunStateRunning,
		StartedAt: time.Now().UTC(),
	}
	if store != nil {
		if err := store.CreateRun(ctx, run); err != nil {
			terminate(sched)
			return err
		}
	}
	logger.Info("run started", "run_id", runID, "workload", w.Name, "capacity", capacity)

	if _, err := rt.StartAutostart(); err != nil {
		terminate(sched)
		return finishRun(ctx, out, store, run, model.RunStateFailed, err.Error())
	}

	loop := driver.NewLoop(sched, driver.Config{
		TickInterval: opts.tick,
		StopWhenIdle: !opts.keepAlive,
		MaxTicks:     opts.maxTicks,
	}, logger)

	var wg sync.WaitGroup
	srvCtx, cancelSrv := context.WithCancel(ctx)
	defer cancelSrv()
	if opts.addr != "" {
		srvOpts := []server.Option{server.WithSnapshotSource(loop, runID)}
		if store != nil {
			srvOpts = append(srvOpts, server.WithStore(store))
		}
		srv := server.New(logger, srvOpts...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(srvCtx, opts.addr); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
	}

	loopErr := loop.Start(ctx)
	if err := loop.Close(); err != nil {
		logger.Warn("terminate", "error", err)
	}
	cancelSrv()
	wg.Wait()

	run.Ticks = loop.Ticks()
	if rec != nil {
		run.Started, run.Finished = rec.Counts()
	} else {
		run.Started, run.Finished = rt.Started(), rt.Started()
	}

	state, msg := runOutcome(loop.Reason(), loopErr, rt.Errors(), loop.TickErrors())
	return finishRun(ctx, out, store, run, state, msg)
}

func terminate(sched *coro.Scheduler) {
	if err := sched.Terminate(); err != nil {
		logger.Warn("terminate", "error", err)
	}
}

// runOutcome maps how the loop ended to the journaled run state.
func runOutcome(reason driver.ExitReason, loopErr error, scriptErrs []error, tickErrs uint64) (model.RunState, string) {
	switch {
	case reason == driver.ExitFailed:
		return model.RunStateFailed, fmt.Sprint(loopErr)
	case len(scriptErrs) > 0:
		msgs := make([]string, len(scriptErrs))
		for i, e := range scriptErrs {
			msgs[i] = e.Error()
		}
		return model.RunStateFailed, strings.Join(msgs, "; ")
	case tickErrs > 0:
		return model.RunStateFailed, fmt.Sprintf("%d passes reported step panics", tickErrs)
	case reason == driver.ExitIdle:
		return model.RunStateCompleted, ""
	default:
		return model.RunStateCancelled, "stopped: " + strings.ToLower(string(reason))
	}
}

func finishRun(ctx context.Context, out io.Writer, store journal.Store, run *model.Run, state model.RunState, msg string) error {
	now := time.Now().UTC()
	if err := run.Transition(state); err != nil {
		return err
	}
	run.Error = msg
	run.FinishedAt = &now

	if store != nil {
		if err := store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
			return fmt.Errorf("update run: %w", err)
		}
	}

	fmt.Fprintf(out, "Run %s %s after %s ticks in %s (%d tasks started, %d finished)\n",
		run.ID, run.State, humanize.Comma(int64(run.Ticks)),
		now.Sub(run.StartedAt).Round(time.Millisecond), run.Started, run.Finished)
	if run.Error != "" {
		fmt.Fprintf(out, "  Error: %s\n", run.Error)
	}
	logger.Info("run finished", "run_id", run.ID, "state", run.State, "ticks", run.Ticks)

	if state == model.RunStateFailed {
		return errors.New("run failed")
	}
	return nil
}
