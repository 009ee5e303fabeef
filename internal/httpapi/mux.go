package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"
)

// NewMux registers the health check and the live feed. Feature routes are
// added by their own packages.
func NewMux(db *sql.DB, hub *Hub, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, logger)
	mux.Handle("GET /ws", hub)
	return mux
}
