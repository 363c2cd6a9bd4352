package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/co2lens-cli/internal/analysis"
	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
	"github.com/KaramelBytes/co2lens-cli/internal/hero"
	"github.com/KaramelBytes/co2lens-cli/internal/session"
	"github.com/KaramelBytes/co2lens-cli/internal/utils"
)

var (
	profData      dataFlags
	profFilter    filterFlags
	profOutput    string
	profOutputDir string
	profSession   string
	profTopN      int
	profJobs      int
	profQuiet     bool
)

var profileCmd = &cobra.Command{
	Use:   "profile [files...]",
	Short: "Profile emissions tables and produce Markdown summaries",
	Long: `Profile one or more emissions tables (CSV/TSV/XLSX). Globs are expanded.
With several inputs the files are profiled concurrently and written to
--output-dir; a single input goes to --output or stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(profSession)
		if err != nil {
			return err
		}
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			// session or config data file
			files = []string{""}
		}
		if len(files) > 1 && profOutputDir == "" {
			return fmt.Errorf("--output-dir is required when profiling %d files", len(files))
		}
		f, err := profFilter.resolve(cmd, s)
		if err != nil {
			return err
		}

		reports := make([]string, len(files))
		var g errgroup.Group
		g.SetLimit(max(1, profJobs))
		for i, path := range files {
			i, path := i, path
			g.Go(func() error {
				t, err := profData.load(path, s)
				if err != nil {
					return fmt.Errorf("%s: %w", displayName(path), err)
				}
				rep, err := analysis.NewReport(f.Apply(t), f, profTopN)
				if err != nil {
					return fmt.Errorf("%s: %w", displayName(path), err)
				}
				reports[i] = rep.Markdown()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		switch {
		case profOutputDir != "":
			if err := utils.EnsureDir(profOutputDir); err != nil {
				return err
			}
			used := map[string]int{}
			for i, path := range files {
				out := filepath.Join(profOutputDir, summaryName(displayName(path), used))
				if err := os.WriteFile(out, []byte(reports[i]), 0o644); err != nil {
					return fmt.Errorf("write summary: %w", err)
				}
				if !profQuiet {
					fmt.Printf("[%d/%d] ✓ %s -> %s\n", i+1, len(files), displayName(path), out)
				}
			}
		case profOutput != "":
			if err := os.WriteFile(profOutput, []byte(reports[0]), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote profile to %s\n", profOutput)
		default:
			fmt.Println(reports[0])
		}

		if s != nil {
			return recordProfile(cmd.Context(), s, f, reports)
		}
		return nil
	},
}

// recordProfile keeps the reports in the session directory and logs the exploration.
func recordProfile(ctx context.Context, s *session.Session, f dataset.Filter, reports []string) error {
	dir := filepath.Join(s.RootDir(), "reports")
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}
	used := map[string]int{}
	for _, md := range reports {
		if err := utils.SafeWriteFile(filepath.Join(dir, summaryName("profile", used)), []byte(md)); err != nil {
			return err
		}
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	evs := append([]hero.Event{hero.NewEvent(hero.KindDataExplored), hero.NewEvent(hero.KindMetricsViewed)},
		hero.ExploreEvents(f.Entities, f.FromPeriod, f.ToPeriod)...)
	if _, err := st.AppendEvents(ctx, s.ID, evs); err != nil {
		logger.Warn("record profile events", zap.String("session", s.Name), zap.Error(err))
	}
	return nil
}

// expandInputs expands globs, keeps literal paths that exist, and de-duplicates.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err != nil {
				return nil, fmt.Errorf("no input files matched %q", arg)
			}
			matches = []string{arg}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func displayName(path string) string {
	if path == "" {
		if cfg != nil && cfg.DataFile != "" {
			return filepath.Base(cfg.DataFile)
		}
		return "dataset"
	}
	return filepath.Base(path)
}

// summaryName derives "<base>.summary.md", suffixing "__2", "__3" on collisions.
func summaryName(base string, used map[string]int) string {
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	used[safe]++
	if n := used[safe]; n > 1 {
		return fmt.Sprintf("%s__%d.summary.md", safe, n)
	}
	return safe + ".summary.md"
}

func init() {
	rootCmd.AddCommand(profileCmd)
	addDataFlags(profileCmd, &profData)
	addFilterFlags(profileCmd, &profFilter)
	profileCmd.Flags().StringVarP(&profOutput, "output", "o", "", "optional path to write the profile (Markdown)")
	profileCmd.Flags().StringVar(&profOutputDir, "output-dir", "", "directory for per-file summaries (required for several inputs)")
	profileCmd.Flags().StringVarP(&profSession, "session", "s", "", "session to attach the profile to")
	profileCmd.Flags().IntVar(&profTopN, "top", 10, "number of top emitters to list")
	profileCmd.Flags().IntVarP(&profJobs, "jobs", "j", 4, "files profiled concurrently")
	profileCmd.Flags().BoolVarP(&profQuiet, "quiet", "q", false, "suppress per-file progress lines")
}
