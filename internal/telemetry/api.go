package telemetry

import (
	"encoding/json"
	"net/http"

	"github.com/HANARO2024/polaris/pkg/spatial"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// Estimator is the subset of the filter the query API reads from. It is
// satisfied directly by *navekf.Filter; it is defined here rather than
// imported so the API package has no compile-time dependency on the
// filter's internals.
type Estimator interface {
	Initialized() bool
	Position() spatial.Vector3
	Velocity() spatial.Vector3
	Euler() (roll, pitch, yaw float64)
	GyroBias() spatial.Vector3
	AccelBias() spatial.Vector3
}

// NewRouter builds the chi-routed HTTP query API: unauthenticated health
// check, public position/velocity/attitude reads, and operator-clearance
// bias reads. Each request carries a request ID from chi's RequestID
// middleware: the client's X-Request-Id header when present, otherwise an
// ID the middleware generates.
func NewRouter(estimator Estimator, authority *Authority) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET"},
		AllowedHeaders:   []string{"Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/position", handlePosition(estimator))
		r.Get("/velocity", handleVelocity(estimator))
		r.Get("/attitude", handleAttitude(estimator))

		r.Group(func(r chi.Router) {
			if authority != nil {
				r.Use(authority.RequireClearance(ClearanceOperator))
			}
			r.Get("/bias", handleBias(estimator))
			r.Post("/session", handleIssueSession(authority))
		})
	})

	return r
}

func handlePosition(e Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !e.Initialized() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "filter not initialized"})
			return
		}
		p := e.Position()
		writeJSON(w, http.StatusOK, map[string]float32{"north": p.X, "east": p.Y, "down": p.Z})
	}
}

func handleVelocity(e Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !e.Initialized() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "filter not initialized"})
			return
		}
		v := e.Velocity()
		writeJSON(w, http.StatusOK, map[string]float32{"north": v.X, "east": v.Y, "down": v.Z})
	}
}

func handleAttitude(e Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !e.Initialized() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "filter not initialized"})
			return
		}
		roll, pitch, yaw := e.Euler()
		writeJSON(w, http.StatusOK, map[string]float64{"roll": roll, "pitch": pitch, "yaw": yaw})
	}
}

func handleBias(e Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !e.Initialized() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "filter not initialized"})
			return
		}
		gb := e.GyroBias()
		ab := e.AccelBias()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"gyro_bias":  [3]float32{gb.X, gb.Y, gb.Z},
			"accel_bias": [3]float32{ab.X, ab.Y, ab.Z},
		})
	}
}

// handleIssueSession mints a fresh operator-clearance token scoped to a
// random session ID. NewRouter mounts it behind the operator-clearance
// check, so a caller must already present an operator (or higher) bearer
// token; with no authority configured it answers 501.
func handleIssueSession(authority *Authority) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if authority == nil {
			writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "no signing authority configured"})
			return
		}
		subject := uuid.NewString()
		token, err := authority.Issue(subject, ClearanceOperator)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token, "subject": subject})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
