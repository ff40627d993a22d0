package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// WidgetMetrics exposes counters/histograms for chat widget sessions.
type WidgetMetrics struct {
	sessionsActive      prometheus.Gauge
	screenTransitions   *prometheus.CounterVec
	registrations       *prometheus.CounterVec
	otpVerifications    *prometheus.CounterVec
	messagesTotal       *prometheus.CounterVec
	attachmentsRejected *prometheus.CounterVec
	bridgeMessages      *prometheus.CounterVec
	verificationTotal   *prometheus.CounterVec
	verificationLatency *prometheus.HistogramVec
}

func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "omnitrix",
			Subsystem: "widget",
			Name:      "sessions_active",
			Help:      "Embedded chat sessions currently connected",
		}),
		screenTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnitrix",
			Subsystem: "widget",
			Name:      "screen_transitions_total",
			Help:      "Screen changes in the frame flow",
		}, []string{"from", "to"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnitrix",
			Subsystem: "widget",
			Name:      "registrations_total",
			Help:      "Registration submissions by outcome",
		}, []string{"status"}),
		otpVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnitrix",
			Subsystem: "widget",
			Name:      "otp_verifications_total",
			Help:      "OTP verification attempts by outcome",
		}, []string{"result"}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnitrix",
			Subsystem: "widget",
			Name:      "messages_total",
			Help:      "Chat messages appended to the log",
		}, []string{"sender", "type"}),
		attachmentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnitrix",
			Subsystem: "widget",
			Name:      "attachments_rejected_total",
			Help:      "Attachments rejected before upload",
		}, []string{"reason"}),
		bridgeMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnitrix",
			Subsystem: "widget",
			Name:      "bridge_messages_total",
			Help:      "Cross-frame messages by direction and action",
		}, []string{"direction", "action", "status"}),
		verificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnitrix",
			Subsystem: "verification",
			Name:      "requests_total",
			Help:      "Verification service calls by endpoint and status code",
		}, []string{"endpoint", "status"}),
		verificationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "omnitrix",
			Subsystem: "verification",
			Name:      "request_latency_seconds",
			Help:      "Latency of verification service calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.sessionsActive,
		m.screenTransitions,
		m.registrations,
		m.otpVerifications,
		m.messagesTotal,
		m.attachmentsRejected,
		m.bridgeMessages,
		m.verificationTotal,
		m.verificationLatency,
	)
	return m
}

func (m *WidgetMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *WidgetMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *WidgetMetrics) ObserveScreen(from, to string) {
	if m == nil {
		return
	}
	m.screenTransitions.WithLabelValues(from, to).Inc()
}

func (m *WidgetMetrics) ObserveRegistration(status string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(status).Inc()
}

func (m *WidgetMetrics) ObserveOTP(result string) {
	if m == nil {
		return
	}
	m.otpVerifications.WithLabelValues(result).Inc()
}

func (m *WidgetMetrics) ObserveMessage(sender, msgType string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(sender, msgType).Inc()
}

func (m *WidgetMetrics) ObserveAttachmentRejected(reason string) {
	if m == nil {
		return
	}
	m.attachmentsRejected.WithLabelValues(reason).Inc()
}

func (m *WidgetMetrics) ObserveBridge(direction, action string, ok bool) {
	if m == nil {
		return
	}
	status := "accepted"
	if !ok {
		status = "rejected"
	}
	m.bridgeMessages.WithLabelValues(direction, action, status).Inc()
}

// ObserveVerification records one service call; status 0 means a transport failure.
func (m *WidgetMetrics) ObserveVerification(endpoint string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.verificationTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.verificationLatency.WithLabelValues(endpoint).Observe(seconds)
}
