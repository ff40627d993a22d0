package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/omnitrix-widget/internal/config"
	"github.com/wolfman30/omnitrix-widget/internal/responder"
	"github.com/wolfman30/omnitrix-widget/internal/sessionstore"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore returns the session registry when Redis is available.
func BuildSessionStore(redisClient *redis.Client, cfg *appconfig.Config) *sessionstore.Store {
	if redisClient == nil || cfg == nil {
		return nil
	}
	return sessionstore.New(redisClient, cfg.SessionTTL)
}

// LoadWidgetDefaults parses the operator's global widget config, if any.
func LoadWidgetDefaults(cfg *appconfig.Config) (*widgetconfig.Override, error) {
	if cfg == nil {
		return nil, nil
	}
	return widgetconfig.ParseOverride([]byte(strings.TrimSpace(cfg.WidgetDefaultsJSON)))
}

// LoadReplyRules reads the reply rules file, or returns nil to keep the
// built-in rules.
func LoadReplyRules(cfg *appconfig.Config, logger *logging.Logger) (*responder.RuleSet, error) {
	if cfg == nil || strings.TrimSpace(cfg.ReplyRulesPath) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	f, err := os.Open(cfg.ReplyRulesPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open reply rules: %w", err)
	}
	defer f.Close()

	set, err := responder.LoadRules(f)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load reply rules: %w", err)
	}
	logger.Info("reply rules loaded", "path", cfg.ReplyRulesPath, "rules", len(set.Rules))
	return &set, nil
}

// LoadWidgetJS reads the embed script served at /widget.js.
func LoadWidgetJS(cfg *appconfig.Config, logger *logging.Logger) ([]byte, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.WidgetJSPath) == "" {
		logger.Warn("WIDGET_JS_PATH not set; /widget.js will be empty")
		return nil, nil
	}
	data, err := os.ReadFile(cfg.WidgetJSPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read widget script: %w", err)
	}
	return data, nil
}
