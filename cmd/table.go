package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/handmorse/internal/morse"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the Morse code table",
	Long:  `Print every decodable character with its code, shortest codes first.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := table.New().Headers("CHAR", "CODE")
		for _, e := range morse.Entries() {
			t.Row(string(e.Char), e.Code)
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return err
	},
}

func init() {
	rootCmd.AddCommand(tableCmd)
}
