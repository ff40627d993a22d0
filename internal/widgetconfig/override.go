package widgetconfig

import (
	"encoding/json"
	"fmt"
	"time"
)

// Override is a partial configuration patch, shaped like the host page's
// global config object. Nil fields leave the current value untouched.
type Override struct {
	TenantID       *string `json:"tenantId,omitempty"`
	ThemeColor     *string `json:"themeColor,omitempty"`
	AgentName      *string `json:"agentName,omitempty"`
	WelcomeMessage *string `json:"welcomeMessage,omitempty"`

	Position    *string `json:"position,omitempty"`
	OffsetX     *int    `json:"offsetX,omitempty"`
	OffsetY     *int    `json:"offsetY,omitempty"`
	ButtonText  *string `json:"buttonText,omitempty"`
	ButtonSize  *int    `json:"buttonSize,omitempty"`
	FrameWidth  *int    `json:"iframeWidth,omitempty"`
	FrameHeight *int    `json:"iframeHeight,omitempty"`
	ZIndex      *int    `json:"zIndex,omitempty"`
	AutoOpen    *bool   `json:"autoOpen,omitempty"`

	ResponseDelay    *DelayMillis `json:"responseDelay,omitempty"`
	MaxFileSize      *int64       `json:"maxFileSize,omitempty"`
	AllowedFileTypes []string     `json:"allowedFileTypes,omitempty"`

	RequireRegistration    *bool                `json:"requireRegistration,omitempty"`
	RequireOTPVerification *bool                `json:"requireOTPVerification,omitempty"`
	DefaultOTP             *string              `json:"defaultOTP,omitempty"`
	RegistrationFields     map[string]FieldRule `json:"registrationFields,omitempty"`

	BaseURL       *string `json:"baseUrl,omitempty"`
	WidgetBaseURL *string `json:"widgetBaseUrl,omitempty"`
}

// DelayMillis is the JSON form of Delay.
type DelayMillis struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ParseOverride decodes a JSON global config object. Empty input yields nil.
func ParseOverride(raw []byte) (*Override, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var o Override
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("widgetconfig: parse override: %w", err)
	}
	return &o, nil
}

// Merge layers next on top of o and returns the combined patch.
func (o Override) Merge(next Override) Override {
	out := o
	mergePtr(&out.TenantID, next.TenantID)
	mergePtr(&out.ThemeColor, next.ThemeColor)
	mergePtr(&out.AgentName, next.AgentName)
	mergePtr(&out.WelcomeMessage, next.WelcomeMessage)
	mergePtr(&out.Position, next.Position)
	mergePtr(&out.OffsetX, next.OffsetX)
	mergePtr(&out.OffsetY, next.OffsetY)
	mergePtr(&out.ButtonText, next.ButtonText)
	mergePtr(&out.ButtonSize, next.ButtonSize)
	mergePtr(&out.FrameWidth, next.FrameWidth)
	mergePtr(&out.FrameHeight, next.FrameHeight)
	mergePtr(&out.ZIndex, next.ZIndex)
	mergePtr(&out.AutoOpen, next.AutoOpen)
	mergePtr(&out.ResponseDelay, next.ResponseDelay)
	mergePtr(&out.MaxFileSize, next.MaxFileSize)
	if next.AllowedFileTypes != nil {
		out.AllowedFileTypes = next.AllowedFileTypes
	}
	mergePtr(&out.RequireRegistration, next.RequireRegistration)
	mergePtr(&out.RequireOTPVerification, next.RequireOTPVerification)
	mergePtr(&out.DefaultOTP, next.DefaultOTP)
	if next.RegistrationFields != nil {
		out.RegistrationFields = next.RegistrationFields
	}
	mergePtr(&out.BaseURL, next.BaseURL)
	mergePtr(&out.WidgetBaseURL, next.WidgetBaseURL)
	return out
}

// Apply patches c with every field set in o.
func (c Config) Apply(o Override) Config {
	out := c.clone()
	applyPtr(&out.TenantID, o.TenantID)
	applyPtr(&out.ThemeColor, o.ThemeColor)
	applyPtr(&out.AgentName, o.AgentName)
	applyPtr(&out.WelcomeMessage, o.WelcomeMessage)
	if o.Position != nil {
		out.Position = Position(*o.Position)
	}
	applyPtr(&out.OffsetX, o.OffsetX)
	applyPtr(&out.OffsetY, o.OffsetY)
	applyPtr(&out.ButtonText, o.ButtonText)
	applyPtr(&out.ButtonSize, o.ButtonSize)
	applyPtr(&out.FrameWidth, o.FrameWidth)
	applyPtr(&out.FrameHeight, o.FrameHeight)
	applyPtr(&out.ZIndex, o.ZIndex)
	applyPtr(&out.AutoOpen, o.AutoOpen)
	if o.ResponseDelay != nil {
		out.ResponseDelay = Delay{
			Min: time.Duration(o.ResponseDelay.Min) * time.Millisecond,
			Max: time.Duration(o.ResponseDelay.Max) * time.Millisecond,
		}
	}
	applyPtr(&out.MaxFileSize, o.MaxFileSize)
	if o.AllowedFileTypes != nil {
		out.AllowedFileTypes = append([]string(nil), o.AllowedFileTypes...)
	}
	applyPtr(&out.RequireRegistration, o.RequireRegistration)
	applyPtr(&out.RequireOTPVerification, o.RequireOTPVerification)
	applyPtr(&out.DefaultOTP, o.DefaultOTP)
	for name, rule := range o.RegistrationFields {
		if out.RegistrationFields == nil {
			out.RegistrationFields = map[string]FieldRule{}
		}
		out.RegistrationFields[name] = rule
	}
	applyPtr(&out.BaseURL, o.BaseURL)
	applyPtr(&out.WidgetBaseURL, o.WidgetBaseURL)
	return out
}

func applyPtr[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}
