package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/subremind/backend/internal/domain"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sweep reset|lookahead",
		Short:     "Run one sweep immediately and print its summary",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.TriggerReset), string(domain.TriggerLookahead)},
		RunE: func(cmd *cobra.Command, args []string) error {
			trigger := domain.Trigger(args[0])
			if !trigger.Valid() {
				return fmt.Errorf("unknown trigger %q, want reset or lookahead", args[0])
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			a, err := wireApp(cmd.Context(), cfg, log)
			if err != nil {
				log.WithError(err).Error("startup failed")
				return err
			}
			defer a.Close()

			summary, err := a.scheduler.RunNow(cmd.Context(), trigger)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}
