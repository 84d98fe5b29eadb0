package middlware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/instafly/instafly/internal/app/logger"
)

type responseRecorder struct {
	http.ResponseWriter
	status        int
	contentLength int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.contentLength += n
	return n, err
}

func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Log.Info("REQUEST:",
			zap.String("Method", r.Method),
			zap.String("Path", r.URL.Path),
		)
		next.ServeHTTP(w, r)
	})
}

func ResponseLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rr, r)
		logger.Log.Info("RESPONSE:",
			zap.Int("Status", rr.status),
			zap.Int("Content-Length", rr.contentLength),
			zap.Duration("Duration", time.Since(start)),
		)
	})
}
