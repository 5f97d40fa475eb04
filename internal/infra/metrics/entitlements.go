package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		entitlementsGrantedTotal,
		entitlementsRevokedTotal,
		entitlementEventsTotal,
	)
}

var (
	entitlementsGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlements_granted_total",
			Help: "Entitlement grants by kind and outcome (created/already_granted).",
		},
		[]string{"kind", "outcome"},
	)

	entitlementsRevokedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "entitlements_revoked_total",
			Help: "Subscriptions cancelled by administrators.",
		},
	)

	entitlementEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_events_total",
			Help: "Entitlement events handed to the publisher, by event and success.",
		},
		[]string{"event", "success"},
	)
)

func IncEntitlementGranted(kind, outcome string) {
	entitlementsGrantedTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}

func AddEntitlementsRevoked(n int) {
	entitlementsRevokedTotal.Add(float64(n))
}

func IncEntitlementEvent(event string, success bool) {
	entitlementEventsTotal.WithLabelValues(norm(event), boolLabel(success)).Inc()
}
