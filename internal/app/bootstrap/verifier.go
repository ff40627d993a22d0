package bootstrap

import (
	"fmt"
	"strings"

	appconfig "github.com/wolfman30/omnitrix-widget/internal/config"
	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/observability/metrics"
	"github.com/wolfman30/omnitrix-widget/internal/verification"
	"github.com/wolfman30/omnitrix-widget/internal/webchat"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

// BuildVerifier wires the optional external verification service. A nil
// verifier keeps sessions on the simulated flow.
func BuildVerifier(cfg *appconfig.Config, widgetMetrics *metrics.WidgetMetrics, logger *logging.Logger) (flow.Verifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if !cfg.UseVerificationService {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	baseURL := strings.TrimSpace(cfg.VerificationBaseURL)
	if baseURL == "" {
		logger.Warn("verification service enabled but base url empty; disabling")
		return nil, nil
	}

	client := verification.NewClient(baseURL, logger,
		verification.WithTimeout(cfg.VerificationTimeout),
		verification.WithMetrics(widgetMetrics),
	)
	logger.Info("verification service enabled", "base_url", client.BaseURL())
	return webchat.NewServiceVerifier(client), nil
}
