package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OAuthExchangeTotal counts OAuth token exchange outcomes.
	OAuthExchangeTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout orchestration outcomes by failed step.
	CheckoutTotal *prometheus.CounterVec
	// WebhookReceivedTotal counts inbound platform webhooks.
	WebhookReceivedTotal prometheus.Counter
	// VoiceConnectionsTotal counts accepted media stream connections.
	VoiceConnectionsTotal prometheus.Counter
	// VoiceFramesTotal counts received (and discarded) media frames.
	VoiceFramesTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OAuthExchangeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_exchange_total",
			Help:      "Count of OAuth authorization-code exchanges by result.",
		}, []string{"result"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout orchestrations by result.",
		}, []string{"result"})
		WebhookReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_received_total",
			Help:      "Total number of platform webhooks captured.",
		})
		VoiceConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_connections_total",
			Help:      "Total number of accepted voice media stream connections.",
		})
		VoiceFramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_frames_total",
			Help:      "Total number of media frames received on voice streams.",
		})

		registerCounterVec(reg, &OAuthExchangeTotal)
		registerCounterVec(reg, &CheckoutTotal)
		registerCounter(reg, &WebhookReceivedTotal)
		registerCounter(reg, &VoiceConnectionsTotal)
		registerCounter(reg, &VoiceFramesTotal)
	})
}
