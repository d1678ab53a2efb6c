package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aadithya-v/sessionstate"
)

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Reconcile lifecycle events from an NDJSON file",
	Long: `Reads one LifecycleEvent per line, e.g.

  {"event":"created","session":{"user":"alice","sessionId":"s1","serviceProvider":"sp1","createdTimestamp":100}}

and reconciles them in order. Reads stdin when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		keepGoing, _ := cmd.Flags().GetBool("continue-on-error")

		in := io.Reader(os.Stdin)
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		counts := make(map[sessionstate.Outcome]int)
		failed := 0
		scanner := bufio.NewScanner(in)
		for line := 1; scanner.Scan(); line++ {
			if len(scanner.Bytes()) == 0 {
				continue
			}

			var ev sessionstate.LifecycleEvent
			if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}

			outcome, err := a.reconciler.Reconcile(cmd.Context(), ev)
			if err != nil {
				if !keepGoing {
					return fmt.Errorf("line %d: %w", line, err)
				}
				a.logger.Error("replay failed", zap.Int("line", line), zap.Error(err))
				failed++
				continue
			}
			counts[outcome]++
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "inserted=%d updated=%d deleted=%d noop=%d failed=%d\n",
			counts[sessionstate.OutcomeInserted],
			counts[sessionstate.OutcomeUpdated],
			counts[sessionstate.OutcomeDeleted],
			counts[sessionstate.OutcomeNoop],
			failed,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().Bool("continue-on-error", false, "Log failed events and keep going")
}
