package server

import "net/http"

// statusRecorder passes writes through while remembering the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader implements http.ResponseWriter
func (sr *statusRecorder) WriteHeader(code int) {
	if sr.statusCode == 0 {
		sr.statusCode = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write implements http.ResponseWriter
func (sr *statusRecorder) Write(data []byte) (int, error) {
	if sr.statusCode == 0 {
		sr.statusCode = http.StatusOK
	}
	return sr.ResponseWriter.Write(data)
}

// status returns the recorded status, 200 if the handler never wrote
func (sr *statusRecorder) status() int {
	if sr.statusCode == 0 {
		return http.StatusOK
	}
	return sr.statusCode
}
