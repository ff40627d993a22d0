// Package widgetconfig resolves the chat widget configuration from built-in
// defaults, a host-page global override and the frame URL query string.
package widgetconfig

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Position anchors the trigger button and the chat panel.
type Position string

const (
	PositionBottomRight Position = "bottom-right"
	PositionBottomLeft  Position = "bottom-left"
)

// Valid reports whether p is a supported corner.
func (p Position) Valid() bool {
	return p == PositionBottomRight || p == PositionBottomLeft
}

// Delay bounds the simulated agent reply latency.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

// FieldRule describes one registration form field.
type FieldRule struct {
	Required bool   `json:"required"`
	Label    string `json:"label"`
}

// Config is the resolved widget configuration. Treat it as a value: the
// controllers copy it and patch it through Apply.
type Config struct {
	TenantID       string
	ThemeColor     string
	AgentName      string
	WelcomeMessage string

	Position    Position
	OffsetX     int
	OffsetY     int
	ButtonText  string
	ButtonSize  int
	FrameWidth  int
	FrameHeight int
	ZIndex      int
	AutoOpen    bool

	ResponseDelay    Delay
	MaxFileSize      int64
	AllowedFileTypes []string

	RequireRegistration    bool
	RequireOTPVerification bool
	DefaultOTP             string
	RegistrationFields     map[string]FieldRule

	// BaseURL is the verification API base; WidgetBaseURL serves the frame document.
	BaseURL       string
	WidgetBaseURL string
}

const (
	defaultThemeColor = "#0047AB"
	maxFileSize       = 5 * 1024 * 1024
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		TenantID:       "default",
		ThemeColor:     defaultThemeColor,
		AgentName:      "Support Agent",
		WelcomeMessage: "Hello! How can I help you today?",
		Position:       PositionBottomRight,
		OffsetX:        20,
		OffsetY:        20,
		ButtonText:     "💬",
		ButtonSize:     60,
		FrameWidth:     400,
		FrameHeight:    600,
		ZIndex:         9999,
		ResponseDelay: Delay{
			Min: 1000 * time.Millisecond,
			Max: 2500 * time.Millisecond,
		},
		MaxFileSize:            maxFileSize,
		AllowedFileTypes:       []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"},
		RequireRegistration:    true,
		RequireOTPVerification: true,
		DefaultOTP:             "123456",
		RegistrationFields: map[string]FieldRule{
			"name":    {Required: true, Label: "Full Name"},
			"email":   {Required: true, Label: "Email Address"},
			"phone":   {Required: true, Label: "Mobile Number"},
			"subject": {Required: false, Label: "Subject"},
		},
	}
}

// Resolve merges defaults < global override < URL query and normalizes the result.
func Resolve(global *Override, query url.Values) Config {
	cfg := Defaults()
	if global != nil {
		cfg = cfg.Apply(*global)
	}
	cfg = cfg.ApplyQuery(query)
	return cfg.Normalize()
}

// ApplyQuery overlays frame URL parameters. Present keys always win.
func (c Config) ApplyQuery(q url.Values) Config {
	if len(q) == 0 {
		return c
	}
	out := c.clone()
	if v := q.Get("tenantId"); v != "" {
		out.TenantID = v
	}
	if v := q.Get("themeColor"); v != "" {
		out.ThemeColor = v
	}
	if v := q.Get("agentName"); v != "" {
		out.AgentName = v
	}
	if v := q.Get("welcomeMessage"); v != "" {
		out.WelcomeMessage = v
	}
	if v := q.Get("position"); v != "" {
		out.Position = Position(v)
	}
	setInt(q, "offsetX", &out.OffsetX)
	setInt(q, "offsetY", &out.OffsetY)
	setInt(q, "buttonSize", &out.ButtonSize)
	setInt(q, "iframeWidth", &out.FrameWidth)
	setInt(q, "iframeHeight", &out.FrameHeight)
	setBool(q, "autoOpen", &out.AutoOpen)
	setBool(q, "requireRegistration", &out.RequireRegistration)
	setBool(q, "requireOTPVerification", &out.RequireOTPVerification)
	if v := q.Get("defaultOTP"); v != "" {
		out.DefaultOTP = v
	}
	if v := q.Get("baseUrl"); v != "" {
		out.BaseURL = v
	}
	return out
}

// Normalize repairs values the widget cannot render.
func (c Config) Normalize() Config {
	if !c.Position.Valid() {
		c.Position = PositionBottomRight
	}
	if !hexColorPattern.MatchString(c.ThemeColor) {
		c.ThemeColor = defaultThemeColor
	}
	if c.ResponseDelay.Min < 0 {
		c.ResponseDelay.Min = 0
	}
	if c.ResponseDelay.Max < c.ResponseDelay.Min {
		c.ResponseDelay.Min, c.ResponseDelay.Max = c.ResponseDelay.Max, c.ResponseDelay.Min
		if c.ResponseDelay.Min < 0 {
			c.ResponseDelay.Min = 0
		}
	}
	if c.WidgetBaseURL != "" && c.BaseURL == "" {
		c.BaseURL = c.WidgetBaseURL
	}
	return c
}

// AllowsFileType reports whether mimeType is in the upload allow-list.
func (c Config) AllowsFileType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, allowed := range c.AllowedFileTypes {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}

// FrameURL builds the embedded document URL carrying the frame-relevant settings.
func FrameURL(c Config) string {
	params := url.Values{}
	params.Set("tenantId", c.TenantID)
	params.Set("themeColor", c.ThemeColor)
	params.Set("agentName", c.AgentName)
	params.Set("requireRegistration", strconv.FormatBool(c.RequireRegistration))
	params.Set("requireOTPVerification", strconv.FormatBool(c.RequireOTPVerification))
	if c.DefaultOTP != "" {
		params.Set("defaultOTP", c.DefaultOTP)
	}
	if c.BaseURL != "" {
		params.Set("baseUrl", c.BaseURL)
	}
	return strings.TrimRight(c.WidgetBaseURL, "/") + "/index.html?" + params.Encode()
}

func (c Config) clone() Config {
	out := c
	out.AllowedFileTypes = append([]string(nil), c.AllowedFileTypes...)
	if c.RegistrationFields != nil {
		out.RegistrationFields = make(map[string]FieldRule, len(c.RegistrationFields))
		for k, v := range c.RegistrationFields {
			out.RegistrationFields[k] = v
		}
	}
	return out
}

func setInt(q url.Values, key string, dst *int) {
	if !q.Has(key) {
		return
	}
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get(key))); err == nil {
		*dst = v
	}
}

func setBool(q url.Values, key string, dst *bool) {
	if !q.Has(key) {
		return
	}
	*dst = q.Get(key) == "true"
}

// DetectBaseURLs fills WidgetBaseURL from the embed script location, or the
// page origin when the script URL is unknown, and defaults BaseURL to it.
func (c Config) DetectBaseURLs(scriptSrc, pageOrigin string) Config {
	if c.WidgetBaseURL == "" {
		if i := strings.LastIndex(scriptSrc, "/widget.js"); scriptSrc != "" && i >= 0 {
			c.WidgetBaseURL = scriptSrc[:i]
		} else {
			c.WidgetBaseURL = strings.TrimRight(pageOrigin, "/")
		}
	}
	if c.BaseURL == "" {
		c.BaseURL = c.WidgetBaseURL
	}
	return c
}
