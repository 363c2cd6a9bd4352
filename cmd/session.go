package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2lens-cli/internal/advisor"
	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
	"github.com/KaramelBytes/co2lens-cli/internal/hero"
	"github.com/KaramelBytes/co2lens-cli/internal/session"
)

var (
	sessData   string
	sessFilter filterFlags
	sessReset  bool
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Manage named analysis sessions",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := sessionsDir()
		if err != nil {
			return err
		}
		data := sessData
		if data != "" {
			if data, err = filepath.Abs(data); err != nil {
				return err
			}
		}
		s, err := session.Create(root, args[0], data)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Session created: %s (%s)\n", s.Name, s.RootDir())
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := sessionsDir()
		if err != nil {
			return err
		}
		all, err := session.List(root)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println("(no sessions)")
			return nil
		}
		for _, s := range all {
			data := s.DataFile
			if data == "" {
				data = "(config data file)"
			}
			fmt.Printf("- %s: %s [filter: %s]\n", s.Name, data, s.Filter.Describe())
		}
		return nil
	},
}

var sessionPreferCmd = &cobra.Command{
	Use:   "prefer <name> <key=value>...",
	Short: "Set session preferences (focus_entity, emission_target); an empty value clears one",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(args[0])
		if err != nil {
			return err
		}
		for _, kv := range args[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got %q", kv)
			}
			if err := s.SetPreference(k, v); err != nil {
				return err
			}
		}
		if err := s.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Preferences for %s: %s\n", s.Name, formatPrefs(s.Preferences))
		return nil
	},
}

var sessionFilterCmd = &cobra.Command{
	Use:   "filter <name>",
	Short: "Set or reset the session's entity and period filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(args[0])
		if err != nil {
			return err
		}
		if sessReset {
			s.SetFilter(dataset.Filter{})
		} else {
			f, err := sessFilter.resolve(cmd, nil)
			if err != nil {
				return err
			}
			s.SetFilter(f)
			if evs := hero.ExploreEvents(f.Entities, f.FromPeriod, f.ToPeriod); len(evs) > 0 {
				if err := recordEvents(cmd.Context(), s, evs...); err != nil {
					return err
				}
			}
		}
		if err := s.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Filter for %s: %s\n", s.Name, s.Filter.Describe())
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a session and its progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(args[0])
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		p, err := st.Progress(cmd.Context(), s.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Session: %s (%s)\n", s.Name, s.ID)
		if s.DataFile != "" {
			fmt.Printf("Data: %s\n", s.DataFile)
		}
		fmt.Printf("Filter: %s\n", s.Filter.Describe())
		fmt.Printf("Preferences: %s\n", formatPrefs(s.Preferences))
		fmt.Printf("Progress: %s\n", p)
		fmt.Printf("Questions: %d · Exports: %d · Entities: %d · Periods: %d\n",
			p.Questions, p.Exports, len(p.Entities), p.Periods)
		counts, err := st.CountByKind(cmd.Context(), s.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Events: %s\n", formatCounts(counts))
		for _, a := range hero.Achievements {
			mark := "·"
			if p.HasAchievement(a.ID) {
				mark = "✓"
			}
			fmt.Printf("  %s %s (+%d): %s\n", mark, a.Name, a.Points, a.Description)
		}
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a session and its recorded events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(args[0])
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := st.DeleteSession(cmd.Context(), s.ID)
		if err != nil {
			return err
		}
		if err := s.Remove(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Session deleted: %s (%d events)\n", s.Name, n)
		return nil
	},
}

// formatCounts renders per-kind event counts, e.g. "chart_viewed=2, question_asked=1".
func formatCounts(m map[hero.Kind]int) string {
	if len(m) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(m))
	for k, n := range m {
		parts = append(parts, fmt.Sprintf("%s=%d", k, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func formatPrefs(m map[string]string) string {
	var parts []string
	for _, k := range advisor.PreferenceKeys {
		if v, ok := m[k]; ok {
			parts = append(parts, k+"="+v)
		}
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionNewCmd, sessionListCmd, sessionPreferCmd, sessionFilterCmd, sessionShowCmd, sessionDeleteCmd)
	sessionNewCmd.Flags().StringVarP(&sessData, "data", "d", "", "emissions table used by this session")
	addFilterFlags(sessionFilterCmd, &sessFilter)
	sessionFilterCmd.Flags().BoolVar(&sessReset, "reset", false, "clear the filter")
}
