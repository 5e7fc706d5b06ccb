package handlers

import "net/http"

// HealthBody is the plaintext body of the health route.
const HealthBody = "OK"

// HealthHandler responds with a plaintext OK for liveness probes.
// It always returns 200 and touches no state.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(HealthBody))
}
