package webchat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/verification"
)

// VerificationClient is the subset of verification.Client the sessions use.
type VerificationClient interface {
	InitiateChat(ctx context.Context, req verification.InitiateChatRequest) (verification.Response, error)
	ResendOTP(ctx context.Context, email string) (verification.Response, error)
	VerifyOTP(ctx context.Context, email, otp string) (verification.Response, error)
}

// ServiceVerifier adapts the verification service to flow.Verifier.
type ServiceVerifier struct {
	client VerificationClient
}

func NewServiceVerifier(client VerificationClient) *ServiceVerifier {
	return &ServiceVerifier{client: client}
}

func (v *ServiceVerifier) InitiateChat(ctx context.Context, user flow.User) error {
	_, err := v.client.InitiateChat(ctx, verification.InitiateChatRequest{
		Name:  user.Name,
		Phone: user.Phone,
		Email: user.Email,
	})
	return err
}

func (v *ServiceVerifier) ResendOTP(ctx context.Context, email string) error {
	_, err := v.client.ResendOTP(ctx, email)
	return err
}

// VerifyOTP reports a 4xx answer as a rejected code.
func (v *ServiceVerifier) VerifyOTP(ctx context.Context, email, code string) error {
	resp, err := v.client.VerifyOTP(ctx, email, code)
	if err != nil {
		var apiErr *verification.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= http.StatusBadRequest && apiErr.Status < http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", flow.ErrCodeMismatch, apiErr.Body)
		}
		return err
	}
	if verified, ok := resp["verified"].(bool); ok && !verified {
		return flow.ErrCodeMismatch
	}
	return nil
}
