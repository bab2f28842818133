package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// LoginCounter counts login attempts
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Total number of login attempts",
		},
	)

	// RegisterCounter counts tenant-plus-owner registrations
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_register_total",
			Help: "Total number of registrations",
		},
	)

	// AuthErrorCounter counts authentication failures by reason
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_errors_total",
			Help: "Total number of authentication errors by reason",
		},
		[]string{"reason"},
	)

	// TokenValidationCounter counts token verifications by outcome
	TokenValidationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_validations_total",
			Help: "Total number of token validations by outcome",
		},
		[]string{"outcome"},
	)

	// TenantGuardCounter counts tenant guard decisions
	TenantGuardCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_guard_decisions_total",
			Help: "Total number of tenant guard decisions by outcome",
		},
		[]string{"outcome"},
	)

	// RevocationCounter counts token revocations by kind
	RevocationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_revocations_total",
			Help: "Total number of token revocations by kind",
		},
		[]string{"kind"},
	)
)

func registerAuthMetrics() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(TokenValidationCounter)
	prometheus.MustRegister(TenantGuardCounter)
	prometheus.MustRegister(RevocationCounter)
}

// RecordAuthError increments the auth error counter for a reason
func RecordAuthError(reason string) {
	AuthErrorCounter.WithLabelValues(reason).Inc()
}

// RecordTokenValidation increments the token validation counter
func RecordTokenValidation(outcome string) {
	TokenValidationCounter.WithLabelValues(outcome).Inc()
}

// RecordTenantGuard increments the tenant guard decision counter
func RecordTenantGuard(outcome string) {
	TenantGuardCounter.WithLabelValues(outcome).Inc()
}

// RecordRevocation increments the revocation counter for a token kind
func RecordRevocation(kind string) {
	RevocationCounter.WithLabelValues(kind).Inc()
}
