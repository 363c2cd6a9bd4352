package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
	"github.com/KaramelBytes/co2lens-cli/internal/session"
	"github.com/KaramelBytes/co2lens-cli/internal/store"
)

// dataFlags are the dataset loading flags shared by every command that reads a table.
type dataFlags struct {
	delimiter     string
	decimal       string
	thousands     string
	sheetName     string
	sheetIndex    int
	maxRows       int
	entityCol     string
	emissionsCol  string
	periodCol     string
	populationCol string
}

func addDataFlags(cmd *cobra.Command, d *dataFlags) {
	f := cmd.Flags()
	f.StringVar(&d.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (default from config or file extension)")
	f.StringVar(&d.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	f.StringVar(&d.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	f.StringVar(&d.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	f.IntVar(&d.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.IntVar(&d.maxRows, "max-rows", 0, "maximum rows to load (0 = config default)")
	f.StringVar(&d.entityCol, "entity-col", "", "column holding the country/organization name")
	f.StringVar(&d.emissionsCol, "emissions-col", "", "column holding total emissions")
	f.StringVar(&d.periodCol, "period-col", "", "column holding the year/period")
	f.StringVar(&d.populationCol, "population-col", "", "column holding population")
}

// options merges config defaults with the flags that were set.
func (d *dataFlags) options() (dataset.Options, error) {
	opt := dataset.DefaultOptions()
	if cfg != nil {
		opt = cfg.DatasetOptions()
	}
	if d.maxRows > 0 {
		opt.MaxRows = d.maxRows
	}
	switch d.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", d.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(d.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", d.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(d.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", d.thousands)
	}
	opt.SheetName = d.sheetName
	if d.sheetIndex > 0 {
		opt.SheetIndex = d.sheetIndex
	}
	for _, o := range []struct {
		flag string
		dst  *string
	}{
		{d.entityCol, &opt.Columns.Entity},
		{d.emissionsCol, &opt.Columns.Emissions},
		{d.periodCol, &opt.Columns.Period},
		{d.populationCol, &opt.Columns.Population},
	} {
		if o.flag != "" {
			*o.dst = o.flag
		}
	}
	return opt, nil
}

// load reads path, falling back to the session's data file and then to config.
func (d *dataFlags) load(path string, s *session.Session) (*dataset.Table, error) {
	if path == "" && s != nil {
		path = s.DataFile
	}
	if path == "" && cfg != nil {
		path = cfg.DataFile
	}
	if path == "" {
		return nil, fmt.Errorf("no data file: pass --data, set one on the session, or run 'co2lens config set data_file <path>'")
	}
	opt, err := d.options()
	if err != nil {
		return nil, err
	}
	t, err := dataset.LoadFile(path, opt)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset loaded",
		zap.String("path", path),
		zap.Int("records", t.Len()),
		zap.Int("warnings", len(t.Warnings)))
	for _, w := range t.Warnings {
		logger.Warn("dataset warning", zap.String("path", path), zap.String("warning", w))
	}
	return t, nil
}

// filterFlags select entities and a period range.
type filterFlags struct {
	entities []string
	from     int
	to       int
}

func addFilterFlags(cmd *cobra.Command, ff *filterFlags) {
	f := cmd.Flags()
	f.StringSliceVar(&ff.entities, "entities", nil, "comma-separated entities to include (repeatable)")
	f.IntVar(&ff.from, "from", 0, "first period to include")
	f.IntVar(&ff.to, "to", 0, "last period to include")
}

// resolve returns the flag filter when any filter flag is set, else the session's.
func (ff *filterFlags) resolve(cmd *cobra.Command, s *session.Session) (dataset.Filter, error) {
	fl := cmd.Flags()
	if !fl.Changed("entities") && !fl.Changed("from") && !fl.Changed("to") && s != nil {
		if err := s.Filter.Validate(); err != nil {
			return s.Filter, fmt.Errorf("session %s has an invalid filter: %w", s.Name, err)
		}
		return s.Filter, nil
	}
	f := dataset.Filter{FromPeriod: ff.from, ToPeriod: ff.to}
	for _, e := range ff.entities {
		if e = strings.TrimSpace(e); e != "" {
			f.Entities = append(f.Entities, e)
		}
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("--from/--to: %w", err)
	}
	return f, nil
}

func sessionsDir() (string, error) {
	if cfg == nil || cfg.SessionsDir == "" {
		return "", fmt.Errorf("sessions_dir is not configured")
	}
	return cfg.SessionsDir, nil
}

// openSession loads the named session. Without a name it falls back to the
// session directory enclosing the working directory, if any.
func openSession(name string) (*session.Session, error) {
	if name == "" {
		return session.Discover("")
	}
	root, err := sessionsDir()
	if err != nil {
		return nil, err
	}
	return session.Open(root, name)
}

func openStore() (*store.Store, error) {
	if cfg == nil || cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is not configured")
	}
	return store.Open(cfg.DBPath, logger)
}
