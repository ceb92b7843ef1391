package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calder-retail/replenish-cli/internal/master"
	"github.com/calder-retail/replenish-cli/internal/quality"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run history and exception reports over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st, cfg.DataRoot),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			if err := shutdownServer(srv); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

const shutdownTimeout = 15 * time.Second

// shutdownServer drains in-flight requests before closing the listener.
// The signal context is already canceled by the time this runs, so the
// drain deadline comes from a fresh context.
func shutdownServer(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newRouter builds the read-only results API.
func newRouter(st master.Store, dataRoot string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := st.ListRuns(req.Context(), 100)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/exceptions/{date}", func(w http.ResponseWriter, req *http.Request) {
		date := chi.URLParam(req, "date")
		rows, err := readExceptionReport(dataRoot, date)
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, []exceptionRow{})
			return
		}
		if err != nil {
			zap.L().Error("read exception report failed", zap.String("date", date), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read report failed"})
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	return r
}

// exceptionRow is the JSON shape of one persisted exception report row.
type exceptionRow struct {
	Timestamp string `json:"timestamp"`
	BatchDate string `json:"batch_date"`
	Rule      string `json:"rule_broken"`
	EntityID  string `json:"entity_id"`
	Details   string `json:"details"`
	Severity  string `json:"severity"`
}

func readExceptionReport(root, batchDate string) ([]exceptionRow, error) {
	f, err := os.Open(quality.ReportPath(root, batchDate))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "parse exception report")
	}

	rows := make([]exceptionRow, 0, len(records))
	for i, rec := range records {
		if i == 0 || len(rec) < 6 {
			continue
		}
		rows = append(rows, exceptionRow{
			Timestamp: rec[0],
			BatchDate: rec[1],
			Rule:      rec[2],
			EntityID:  rec[3],
			Details:   rec[4],
			Severity:  rec[5],
		})
	}
	return rows, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
