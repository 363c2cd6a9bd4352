package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/co2lens-cli/internal/advisor"
	"github.com/KaramelBytes/co2lens-cli/internal/hero"
	"github.com/KaramelBytes/co2lens-cli/internal/session"
	"github.com/KaramelBytes/co2lens-cli/internal/utils"
)

var (
	askData    dataFlags
	askFilter  filterFlags
	askFile    string
	askSession string
	askJSON    bool
	askFocus   string
	askTarget  string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question and get rule-based recommendations",
	Long: `Ask a free-text question about the (optionally filtered) dataset. The answer
lists recommendations for the matched category, the data behind them, any
anomalous emitters, and a confidence derived from data quality. An empty
question returns general insights.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(askSession)
		if err != nil {
			return err
		}
		t, err := askData.load(askFile, s)
		if err != nil {
			return err
		}
		f, err := askFilter.resolve(cmd, s)
		if err != nil {
			return err
		}
		prefs, err := askPreferences(s)
		if err != nil {
			return err
		}

		req := advisor.Request{Query: strings.TrimSpace(strings.Join(args, " ")), Filter: f, Preferences: prefs}
		resp, err := advisor.New().Recommend(f.Apply(t), req)
		if err != nil {
			return err
		}
		logger.Debug("question answered",
			zap.String("category", resp.Category.String()),
			zap.Float64("confidence", resp.Confidence),
			zap.Int("anomalies", len(resp.Anomalies)))

		if askJSON {
			b, err := utils.PrettyJSON(resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
		} else {
			printResponse(cmd.OutOrStdout(), resp)
		}

		if s != nil {
			evs := append(hero.ExploreEvents(f.Entities, f.FromPeriod, f.ToPeriod), hero.EventForResponse(resp))
			return recordEvents(cmd.Context(), s, evs...)
		}
		return nil
	},
}

// askPreferences starts from the session's preferences and applies flag overrides.
func askPreferences(s *session.Session) (advisor.Preferences, error) {
	kv := map[string]string{}
	if s != nil {
		for k, v := range s.Preferences {
			kv[k] = v
		}
	}
	if askFocus != "" {
		kv[advisor.PrefFocusEntity] = askFocus
	}
	if askTarget != "" {
		kv[advisor.PrefEmissionTarget] = askTarget
	}
	return advisor.ParsePreferences(kv)
}

func printResponse(w io.Writer, r *advisor.Response) {
	fmt.Fprintln(w, r.Answer)
	fmt.Fprintf(w, "\nCategory: %s · Confidence: %s · Uncertainty: %s\n",
		r.Category, utils.Percent(r.Confidence), r.Disclosure.UncertaintyLevel)
	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s:\n", title)
		for i, it := range items {
			fmt.Fprintf(w, "  %d. %s\n", i+1, it)
		}
	}
	list("Recommendations", r.Recommendations)
	list("Immediate actions", r.Groups.ImmediateActions)
	list("Policy suggestions", r.Groups.PolicySuggestions)
	list("Anomaly follow-up", r.Groups.AnomalyRecommendations)
	list("For you", r.Groups.Personalized)
	list("Key insights", r.Summary.KeyInsights)
	list("Transparency", r.Disclosure.TransparencyNotes)
}

// recordEvents appends events to the session's log and prints the new progress.
func recordEvents(ctx context.Context, s *session.Session, evs ...hero.Event) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := st.AppendEvents(ctx, s.ID, evs); err != nil {
		return fmt.Errorf("record session activity: %w", err)
	}
	p, err := st.Progress(ctx, s.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "★ %s: %s\n", s.Name, p)
	return nil
}

func init() {
	rootCmd.AddCommand(askCmd)
	addDataFlags(askCmd, &askData)
	addFilterFlags(askCmd, &askFilter)
	askCmd.Flags().StringVarP(&askFile, "data", "d", "", "emissions table (CSV/TSV/XLSX); defaults to the session or config data file")
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session whose preferences, filter, and progress to use")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full response as JSON")
	askCmd.Flags().StringVar(&askFocus, "focus", "", "entity to personalize recommendations for")
	askCmd.Flags().StringVar(&askTarget, "target", "", "emission target in tonnes, e.g. 5000")
}
