package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		ordersTotal,
		ordersRevenueTotal,
		gatewayCallsTotal,
	)
}

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Order transitions by type and resulting status.",
		},
		[]string{"type", "status"},
	)

	ordersRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_revenue_total",
			Help: "Monetary value of paid orders, labeled by currency.",
		},
		[]string{"currency"},
	)

	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_calls_total",
			Help: "Calls to the payment provider by operation and success.",
		},
		[]string{"provider", "op", "success"},
	)
)

func IncOrder(orderType, status string) {
	ordersTotal.WithLabelValues(norm(orderType), norm(status)).Inc()
}

func AddOrderRevenue(currency string, amount decimal.Decimal) {
	ordersRevenueTotal.WithLabelValues(norm(currency)).Add(amount.InexactFloat64())
}

func IncGatewayCall(provider, op string, success bool) {
	gatewayCallsTotal.WithLabelValues(norm(provider), norm(op), boolLabel(success)).Inc()
}
