package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/looper/internal/models"
	"github.com/tOgg1/looper/internal/session"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [session]",
	Short: "Show session state, or all sessions when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		var states []*models.SessionState
		if len(args) == 1 {
			state, err := session.Read(session.StatePath(cfg.Global.ProjectDir, args[0]))
			if err != nil {
				return err
			}
			states = append(states, state)
		} else {
			var err error
			states, err = readAllStates(cfg.Global.ProjectDir)
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(states)
		}

		if len(states) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderStatusTable(states))
		return nil
	},
}

func readAllStates(projectDir string) ([]*models.SessionState, error) {
	pattern := filepath.Join(projectDir, ".claude", "loop-progress", "state-*.json")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	states := make([]*models.SessionState, 0, len(paths))
	for _, path := range paths {
		state, err := session.Read(path)
		if err != nil {
			// Corrupt state is surfaced, not silently skipped.
			return nil, err
		}
		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].StartedAt.Before(states[j].StartedAt)
	})
	return states, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)

	statusStyles = map[models.SessionStatus]lipgloss.Style{
		models.SessionStatusRunning:       lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		models.SessionStatusComplete:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		models.SessionStatusMaxIterations: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		models.SessionStatusKilled:        lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

func renderStatusTable(states []*models.SessionState) string {
	styled := colorEnabled()

	rows := make([][]string, 0, len(states)+1)
	rows = append(rows, []string{"SESSION", "LOOP", "STATUS", "ITER", "STARTED", "REASON"})
	for _, state := range states {
		status := string(state.Status)
		if styled {
			if style, ok := statusStyles[state.Status]; ok {
				status = style.Render(status)
			}
		}
		rows = append(rows, []string{
			state.Session,
			state.LoopType,
			status,
			fmt.Sprintf("%d", state.Iteration),
			state.StartedAt.Local().Format(time.DateTime),
			state.CompletionReason,
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var out strings.Builder
	for rowIdx, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			cells[i] = cell + pad
		}
		line := strings.TrimRight(strings.Join(cells, "  "), " ")
		if rowIdx == 0 && styled {
			line = headerStyle.Render(line)
		}
		out.WriteString(line)
		out.WriteString("\n")
	}
	return strings.TrimRight(out.String(), "\n")
}

func colorEnabled() bool {
	if noColor || jsonOutput {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
