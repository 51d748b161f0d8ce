package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth lifecycle Prometheus metrics. Defined in a standalone package to avoid
// import cycles between services and transport packages.

var (
	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Logins por resultado (success, mfa_required, failed)",
	}, []string{"result"})

	LogoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_logouts_total",
		Help: "Logouts procesados (incluye repetidos idempotentes)",
	})

	RotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_rotations_total",
		Help: "Rotaciones de refresh token exitosas",
	})

	ReuseDetectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_reuse_detected_total",
		Help: "Presentaciones de un token ya rotado/revocado (linaje revocado)",
	})

	MfaLockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_mfa_lockouts_total",
		Help: "Bloqueos por agotar intentos de verificación MFA",
	})

	BlacklistWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_blacklist_writes_total",
		Help: "Access tokens agregados a la blacklist",
	})

	SessionValidationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "auth_session_validation_latency_ms",
		Help:    "Latencia de validación de sesión en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// Register registers the auth metrics on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		LoginsTotal,
		LogoutsTotal,
		RotationsTotal,
		ReuseDetectedTotal,
		MfaLockoutsTotal,
		BlacklistWritesTotal,
		SessionValidationLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
