package webchat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/verification"
)

type mockVerificationClient struct {
	initiated []verification.InitiateChatRequest
	resent    []string
	verifyErr error
	verifyOK  verification.Response
}

func (m *mockVerificationClient) InitiateChat(_ context.Context, req verification.InitiateChatRequest) (verification.Response, error) {
	m.initiated = append(m.initiated, req)
	return verification.Response{"status": "ok"}, nil
}

func (m *mockVerificationClient) ResendOTP(_ context.Context, email string) (verification.Response, error) {
	m.resent = append(m.resent, email)
	return verification.Response{}, nil
}

func (m *mockVerificationClient) VerifyOTP(_ context.Context, _, _ string) (verification.Response, error) {
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return m.verifyOK, nil
}

func TestServiceVerifier_InitiateChat(t *testing.T) {
	client := &mockVerificationClient{}
	v := NewServiceVerifier(client)

	err := v.InitiateChat(context.Background(), flow.User{Name: "Ana", Email: "ana@example.com", Phone: "5551234567", Subject: "billing"})
	require.NoError(t, err)
	require.Len(t, client.initiated, 1)
	assert.Equal(t, verification.InitiateChatRequest{Name: "Ana", Phone: "5551234567", Email: "ana@example.com"}, client.initiated[0])

	require.NoError(t, v.ResendOTP(context.Background(), "ana@example.com"))
	assert.Equal(t, []string{"ana@example.com"}, client.resent)
}

func TestServiceVerifier_VerifyOTP(t *testing.T) {
	tests := []struct {
		name     string
		client   *mockVerificationClient
		mismatch bool
		wantErr  bool
	}{
		{name: "accepted", client: &mockVerificationClient{verifyOK: verification.Response{"verified": true}}},
		{name: "accepted without flag", client: &mockVerificationClient{verifyOK: verification.Response{}}},
		{name: "explicit rejection", client: &mockVerificationClient{verifyOK: verification.Response{"verified": false}}, mismatch: true, wantErr: true},
		{name: "client error", client: &mockVerificationClient{verifyErr: &verification.APIError{Endpoint: "verify-otp", Status: 400, Body: "invalid otp"}}, mismatch: true, wantErr: true},
		{name: "server error", client: &mockVerificationClient{verifyErr: &verification.APIError{Endpoint: "verify-otp", Status: 503, Body: "down"}}, wantErr: true},
		{name: "transport error", client: &mockVerificationClient{verifyErr: &verification.APIError{Endpoint: "verify-otp", Err: errors.New("dial tcp")}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewServiceVerifier(tt.client).VerifyOTP(context.Background(), "ana@example.com", "123456")
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.mismatch, errors.Is(err, flow.ErrCodeMismatch))
		})
	}
}
