package server

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atlekbai/aicfo/internal/middleware"
)

// ConnectService is implemented by each service to register its connect handler.
// The returned path is the service prefix the handler is mounted under.
type ConnectService interface {
	RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler)
}

// RESTService mounts plain JSON routes.
type RESTService interface {
	Register(r *mux.Router)
}

// NewRouter assembles the HTTP surface: REST routes, Connect services,
// /metrics and /healthz, wrapped in request id, logging and recovery.
func NewRouter(logger *zap.Logger, rest []RESTService, services []ConnectService, interceptors ...connect.Interceptor) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}` + "\n"))
	}).Methods(http.MethodGet)

	for _, svc := range rest {
		svc.Register(r)
	}
	for _, svc := range services {
		path, h := svc.RegisterHandler(interceptors...)
		r.PathPrefix(path).Handler(h)
	}

	r.Use(middleware.RequestID, middleware.Logging(logger), middleware.Recovery(logger))
	return r
}
