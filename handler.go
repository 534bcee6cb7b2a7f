package gatewayip

import (
	"io"
	"net/http"
)

// InfoMessage is the body returned for every path other than /run.
const InfoMessage = "gatewayip online. Use /run or the scheduler to execute updates."

// Handler returns an http.Handler that runs r on requests to /run
// and writes the status message as the response body.
// Requests to any other path get InfoMessage and never trigger an update.
//
// The run ID is returned in the X-Run-ID header.
func Handler(r Reconciler, logger logf) http.Handler {
	if logger == nil {
		logger = discard
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/run", func(w http.ResponseWriter, req *http.Request) {
		result := r.Reconcile(req.Context())
		logger.Printf("gatewayip.Handler: %s %s: %s", req.Method, req.URL.Path, result.Kind)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if result.RunID != "" {
			w.Header().Set("X-Run-ID", result.RunID)
		}
		io.WriteString(w, result.Message)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, InfoMessage)
	})
	return mux
}
