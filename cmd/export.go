package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/co2lens-cli/internal/advisor"
	"github.com/KaramelBytes/co2lens-cli/internal/export"
	"github.com/KaramelBytes/co2lens-cli/internal/hero"
	"github.com/KaramelBytes/co2lens-cli/internal/utils"
)

var (
	expData    dataFlags
	expFilter  filterFlags
	expFile    string
	expFormat  string
	expOutput  string
	expQuery   string
	expSession string
	expTopN    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the filtered dataset as CSV, JSON, or a Markdown report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(expFormat)
		if err != nil {
			return err
		}
		s, err := openSession(expSession)
		if err != nil {
			return err
		}
		t, err := expData.load(expFile, s)
		if err != nil {
			return err
		}
		f, err := expFilter.resolve(cmd, s)
		if err != nil {
			return err
		}
		filtered := f.Apply(t)
		b := export.Bundle{Table: filtered, Filter: f, TopN: expTopN}
		if q := strings.TrimSpace(expQuery); q != "" {
			req := advisor.Request{Query: q, Filter: f}
			if s != nil {
				req.Preferences = s.Prefs()
			}
			if b.Response, err = advisor.New().Recommend(filtered, req); err != nil {
				return err
			}
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, format, b); err != nil {
			return err
		}
		if expOutput == "" || expOutput == "-" {
			if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
				return err
			}
		} else {
			if err := utils.SafeWriteFile(expOutput, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Exported %d records as %s to %s\n", filtered.Len(), format, expOutput)
		}
		if s != nil {
			return recordEvents(cmd.Context(), s, hero.ExportEvent(string(format)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addDataFlags(exportCmd, &expData)
	addFilterFlags(exportCmd, &expFilter)
	exportCmd.Flags().StringVarP(&expFile, "data", "d", "", "emissions table (CSV/TSV/XLSX); defaults to the session or config data file")
	exportCmd.Flags().StringVarP(&expFormat, "format", "f", "csv", "export format: csv|json|markdown")
	exportCmd.Flags().StringVarP(&expOutput, "output", "o", "", "output path (default stdout)")
	exportCmd.Flags().StringVar(&expQuery, "query", "", "include the answer to this question (json and markdown)")
	exportCmd.Flags().StringVarP(&expSession, "session", "s", "", "session to use and credit")
	exportCmd.Flags().IntVar(&expTopN, "top", 10, "number of top emitters in reports")
}
