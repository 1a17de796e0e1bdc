package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rahul/herodotus/internal/app"
	"github.com/rahul/herodotus/internal/units"
)

var (
	memorySession   string
	memoryLimit     int
	memorySummary   bool
	memoryKeyPoints bool
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or clear conversation memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a session's history, summary or key points",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			out := cmd.OutOrStdout()
			if memorySummary || memoryKeyPoints {
				m, err := svc.Memory(memorySession)
				if err != nil {
					return err
				}
				if memorySummary {
					summary, err := m.Summarize(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintln(out, summary)
				}
				if memoryKeyPoints {
					points, err := m.KeyPoints(cmd.Context())
					if err != nil {
						return err
					}
					for _, p := range points {
						fmt.Fprintf(out, "- %s\n", p)
					}
				}
				return nil
			}

			msgs, err := svc.History().GetHistory(cmd.Context(), memorySession, memoryLimit)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Fprintf(out, "No history for session %s.\n", memorySession)
				return nil
			}
			for _, m := range msgs {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Format("2006-01-02 15:04"), m.Role, m.Content)
			}
			return nil
		})
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget a session's history and recalled exchanges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			if err := svc.ClearMemory(cmd.Context(), memorySession); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared session %s\n", memorySession)
			return nil
		})
	},
}

var memorySessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions with stored history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			sessions, err := svc.History().Sessions(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sessions {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryShowCmd, memoryClearCmd, memorySessionsCmd)

	memoryCmd.PersistentFlags().StringVarP(&memorySession, "session", "s", units.DefaultSession, "memory session id")
	memoryShowCmd.Flags().IntVarP(&memoryLimit, "limit", "n", 0, "show only the last n messages")
	memoryShowCmd.Flags().BoolVar(&memorySummary, "summary", false, "summarize the session with the model")
	memoryShowCmd.Flags().BoolVar(&memoryKeyPoints, "key-points", false, "extract key points with the model")
}
