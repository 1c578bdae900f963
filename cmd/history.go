package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/handmorse/internal/transcript"
)

// ErrNoTranscript is returned when history is requested without a database.
var ErrNoTranscript = errors.New("no transcript database configured (set transcript_db or --transcript)")

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List recorded decode sessions",
	Long: `List the most recent sessions stored in the transcript database.
With a session ID, list the letters decoded in that session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of sessions to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	settings, closeLog, err := loadSettings()
	if err != nil {
		return err
	}
	defer closeLog()

	if settings.TranscriptDB == "" {
		return ErrNoTranscript
	}
	store, err := transcript.New(settings.TranscriptDB)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		return printLetters(cmd, store, args[0])
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	sessions, err := store.Recent(limit)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no sessions recorded")
		return nil
	}

	t := table.New().Headers("ID", "STARTED", "DURATION", "LETTERS", "RESETS", "END", "SENTENCE")
	for _, s := range sessions {
		duration, reason := "-", "open"
		if !s.EndedAt.IsZero() {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
			reason = s.EndReason
		}
		t.Row(
			s.ID,
			s.StartedAt.Local().Format(time.DateTime),
			duration,
			fmt.Sprint(s.Letters),
			fmt.Sprint(s.Resets),
			reason,
			s.Sentence,
		)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return err
}

func printLetters(cmd *cobra.Command, store *transcript.Store, id string) error {
	sess, err := store.Session(id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	letters, err := store.Letters(sess.ID)
	if err != nil {
		return fmt.Errorf("list letters: %w", err)
	}

	t := table.New().Headers("#", "CHAR", "CODE", "DECODED")
	for _, l := range letters {
		t.Row(fmt.Sprint(l.Seq), string(l.Char), l.Code, l.DecodedAt.Local().Format(time.TimeOnly))
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s: %q\n", sess.ID, sess.Sentence)
	_, err = fmt.Fprintln(out, t.Render())
	return err
}
