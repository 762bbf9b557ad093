package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fixpoint/internal/agent/domain"
	"fixpoint/internal/agent/ports"
	"fixpoint/internal/checkpoint"
)

func newResumeCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <checkpoint-id>",
		Short: "Resume an interrupted task from a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			store, err := checkpoint.NewFileStore(cfg.CheckpointDir)
			if err != nil {
				return err
			}
			cp, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rt, err := buildRuntime(cfg, cp.Workspace)
			if err != nil {
				return err
			}
			defer rt.servers.StopAll()

			tier, err := resolveComplexity(flags.complexity, cp.Request)
			if err != nil {
				return err
			}

			tc := domain.RestoreTaskContext(cp, tier, time.Now())
			tc.LongRunning = true
			tc.CheckpointInterval = cfg.CheckpointInterval
			tc.Messages = []ports.Message{{Role: "user", Content: domain.ResumePrompt(cp)}}

			fmt.Printf("Resuming task %s from checkpoint %s (iteration %d)\n", cp.TaskID, cp.ID, cp.Iteration)
			return executeAndRender(cmd.Context(), rt, tc, flags)
		},
	}
}

func newCheckpointsCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoints",
		Short: "List resumable checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			store, err := checkpoint.NewFileStore(cfg.CheckpointDir)
			if err != nil {
				return err
			}
			checkpoints, err := store.List(cmd.Context(), cfg.UserID, "")
			if err != nil {
				return err
			}
			if len(checkpoints) == 0 {
				fmt.Println("No checkpoints found.")
				return nil
			}
			for _, cp := range checkpoints {
				fmt.Printf("%s  %s  iter %-3d  %s  %s\n",
					cp.ID,
					cp.CreatedAt.Format("2006-01-02 15:04"),
					cp.Iteration,
					cp.Kind,
					truncateLine(cp.Request, 60))
			}
			return nil
		},
	}
}
