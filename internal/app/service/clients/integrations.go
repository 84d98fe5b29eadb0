package clients

import (
	"context"
	"encoding/json"
	"fmt"
)

// Typed wrappers over Invoke for the functions the services depend on.

type (
	PaymentRequest struct {
		OrderID     string  `json:"order_id"`
		Amount      float64 `json:"amount"`
		Description string  `json:"description"`
		PayerEmail  string  `json:"payer_email"`
	}
	PaymentResponse struct {
		PaymentID string `json:"payment_id"`
		PixCode   string `json:"pix_code"` // EMV copy-and-paste payload
		ExpiresAt string `json:"expires_at"`
	}

	OrderStatusResponse struct {
		OrderID        string `json:"order_id"`
		Status         string `json:"status"`
		ProviderStatus string `json:"provider_status"`
		Remains        int    `json:"remains"`
	}

	DispatchRequest struct {
		OrderID           string `json:"order_id"`
		ProviderServiceID string `json:"provider_service_id"`
		TargetURL         string `json:"target_url"`
		Quantity          int    `json:"quantity"`
		Express           bool   `json:"express"`
	}
	DispatchResponse struct {
		ProviderOrderID string `json:"provider_order_id"`
	}

	WhatsAppMessage struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}

	InstagramProfile struct {
		Username       string `json:"username"`
		FullName       string `json:"full_name"`
		ProfilePicURL  string `json:"profile_pic_url"`
		FollowerCount  int    `json:"follower_count"`
		FollowingCount int    `json:"following_count"`
		IsPrivate      bool   `json:"is_private"`
	}
)

type Integrations struct {
	fc FunctionsClient
}

func NewIntegrations(fc FunctionsClient) *Integrations {
	return &Integrations{fc: fc}
}

func (i *Integrations) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	res, err := i.fc.Invoke(ctx, FnCreatePayment, req)
	if err != nil {
		return nil, err
	}
	out := &PaymentResponse{}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	return out, nil
}

func (i *Integrations) SyncOrderStatus(ctx context.Context, orderID string) (*OrderStatusResponse, error) {
	res, err := i.fc.Invoke(ctx, FnSyncOrderStatus, map[string]string{"order_id": orderID})
	if err != nil {
		return nil, err
	}
	out := &OrderStatusResponse{}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return nil, fmt.Errorf("decode order status response: %w", err)
	}
	return out, nil
}

func (i *Integrations) DispatchOrder(ctx context.Context, req DispatchRequest) (*DispatchResponse, error) {
	res, err := i.fc.Invoke(ctx, FnProcessOrder, req)
	if err != nil {
		return nil, err
	}
	out := &DispatchResponse{}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return nil, fmt.Errorf("decode dispatch response: %w", err)
	}
	return out, nil
}

func (i *Integrations) SendWhatsApp(ctx context.Context, msg WhatsAppMessage) error {
	_, err := i.fc.Invoke(ctx, FnSendWhatsApp, msg)
	return err
}

func (i *Integrations) GetInstagramProfile(ctx context.Context, username string) (*InstagramProfile, error) {
	res, err := i.fc.Invoke(ctx, FnGetInstagramProfile, map[string]string{"username": username})
	if err != nil {
		return nil, err
	}
	out := &InstagramProfile{}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return nil, fmt.Errorf("decode instagram profile: %w", err)
	}
	return out, nil
}
