package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame error reasons.
const (
	ReasonTruncated = "truncated"
	ReasonCorrupt   = "corrupt"
)

// LinkMetrics counts what the serial link does. A nil registerer yields
// working but unregistered collectors.
type LinkMetrics struct {
	Scans         prometheus.Counter
	Sessions      prometheus.Counter
	OpenErrors    prometheus.Counter
	BytesRead     prometheus.Counter
	FramesDecoded prometheus.Counter
	FrameErrors   *prometheus.CounterVec
	Connected     prometheus.Gauge
}

func NewLinkMetrics(reg prometheus.Registerer) *LinkMetrics {
	factory := promauto.With(reg)
	return &LinkMetrics{
		Scans: factory.NewCounter(prometheus.CounterOpts{
			Name: "groundstation_link_scans_total",
			Help: "Device locator scans",
		}),
		Sessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "groundstation_link_sessions_total",
			Help: "Serial sessions opened",
		}),
		OpenErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "groundstation_link_open_errors_total",
			Help: "Failed attempts to open the serial port",
		}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "groundstation_link_bytes_read_total",
			Help: "Bytes read from the serial port",
		}),
		FramesDecoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "groundstation_link_frames_decoded_total",
			Help: "Frames decoded into packets",
		}),
		FrameErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groundstation_link_frame_errors_total",
			Help: "Frames that failed to decode, by reason",
		}, []string{"reason"}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "groundstation_link_connected",
			Help: "1 while a serial session is open",
		}),
	}
}

// MetricsHandler serves /metrics and /healthz.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ServeMetrics blocks until ctx is done or the listener fails.
func ServeMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           MetricsHandler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("metrics listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
