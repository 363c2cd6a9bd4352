package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/co2lens-cli/internal/server"
	"github.com/KaramelBytes/co2lens-cli/internal/store"
)

var (
	srvData    dataFlags
	srvFile    string
	srvAddr    string
	srvNoStore bool
	srvTopN    int
	srvOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the advisor, summaries, exports, and session progress over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := srvData.load(srvFile, nil)
		if err != nil {
			return err
		}
		var st *store.Store
		if !srvNoStore {
			if st, err = openStore(); err != nil {
				return err
			}
			defer st.Close()
		}
		addr := srvAddr
		if addr == "" {
			addr = cfg.ServerAddr
		}
		origins := srvOrigins
		if len(origins) == 0 {
			origins = cfg.CORSOrigins
		}

		// The server logs at info regardless of the CLI's quieter default.
		l := logger
		if !debug && !l.Core().Enabled(zap.InfoLevel) {
			if l, err = zap.NewProduction(); err != nil {
				return err
			}
			defer func() { _ = l.Sync() }()
		}
		srv := server.New(server.Options{
			Table:       t,
			Store:       st,
			Logger:      l,
			CORSOrigins: origins,
			TopN:        srvTopN,
			SessionsDir: cfg.SessionsDir,
		})
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		l.Info("serving dataset",
			zap.String("dataset", t.Name),
			zap.Int("records", t.Len()),
			zap.String("addr", addr),
			zap.Bool("sessions", st != nil))
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addDataFlags(serveCmd, &srvData)
	serveCmd.Flags().StringVarP(&srvFile, "data", "d", "", "emissions table (CSV/TSV/XLSX); defaults to config data_file")
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default from config server_addr)")
	serveCmd.Flags().StringSliceVar(&srvOrigins, "cors-origin", nil, "allowed CORS origin (repeatable; default from config)")
	serveCmd.Flags().BoolVar(&srvNoStore, "no-sessions", false, "disable session event endpoints")
	serveCmd.Flags().IntVar(&srvTopN, "top", 10, "number of top emitters in summaries")
}
