package httpserver

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// RegisterHealthz puts /healthz on the default mux. It has to be the
// default mux because the Telegram webhook listener registers there too.
func RegisterHealthz(db *sql.DB) {
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
