// Package webhooks delivers fire-and-forget status callbacks to the URL a deposit was
// created with. Deliveries are best effort: failures are logged and counted, never
// retried, and never block the submission pipeline.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/stellar/go/support/log"

	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/internal/monitor"
	"github.com/stellar/anchor-deposits-processor/internal/serve/httpclient"
)

// StatusPayload is the JSON body posted to the callback URL on every status change.
type StatusPayload struct {
	ID                   string     `json:"id"`
	Kind                 string     `json:"kind"`
	Status               string     `json:"status"`
	StatusMessage        string     `json:"status_message,omitempty"`
	AmountIn             string     `json:"amount_in,omitempty"`
	AmountFee            string     `json:"amount_fee,omitempty"`
	AmountOut            string     `json:"amount_out,omitempty"`
	StellarTransactionID string     `json:"stellar_transaction_id,omitempty"`
	ClaimableBalanceID   string     `json:"claimable_balance_id,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

func payloadFromTransaction(tx data.Transaction) StatusPayload {
	payload := StatusPayload{
		ID:                   tx.ID,
		Kind:                 string(tx.Kind),
		Status:               string(tx.Status),
		StatusMessage:        tx.StatusMessage,
		StellarTransactionID: tx.StellarTransactionID,
		ClaimableBalanceID:   tx.ClaimableBalanceID,
		CompletedAt:          tx.CompletedAt,
		UpdatedAt:            tx.UpdatedAt,
	}

	if tx.AmountIn.Valid {
		payload.AmountIn = tx.AmountIn.Decimal.String()
	}
	if tx.AmountFee.Valid {
		payload.AmountFee = tx.AmountFee.Decimal.String()
	}
	if tx.AmountOut.Valid {
		payload.AmountOut = tx.AmountOut.Decimal.String()
	}

	return payload
}

type Notifier struct {
	httpClient     httpclient.HTTPClientInterface
	jwtManager     *JWTManager
	monitorService monitor.MonitorServiceInterface
}

// NewNotifier creates a Notifier. jwtManager may be nil, in which case callbacks are sent
// unauthenticated.
func NewNotifier(httpClient httpclient.HTTPClientInterface, jwtManager *JWTManager, monitorService monitor.MonitorServiceInterface) (*Notifier, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}
	if monitorService == nil {
		return nil, fmt.Errorf("monitor service cannot be nil")
	}

	return &Notifier{
		httpClient:     httpClient,
		jwtManager:     jwtManager,
		monitorService: monitorService,
	}, nil
}

// NotifyStatusChange posts the transaction's current status to its callback URL in a
// separate goroutine. Rows without a callback URL are skipped silently.
func (n *Notifier) NotifyStatusChange(ctx context.Context, tx data.Transaction) {
	if tx.CallbackURL == "" {
		return
	}

	go func() {
		if err := n.Notify(ctx, tx); err != nil {
			log.Ctx(ctx).Errorf("delivering status callback for transaction %s: %v", tx.ID, err)
		}
	}()
}

// Notify delivers the callback synchronously. Exposed so tests and one-off tooling can
// observe the outcome.
func (n *Notifier) Notify(ctx context.Context, tx data.Transaction) error {
	err := n.deliver(ctx, tx)

	result := "ok"
	if err != nil {
		result = "error"
	}
	_ = n.monitorService.MonitorCounters(monitor.WebhookDeliveriesTag, map[string]string{"result": result})

	return err
}

func (n *Notifier) deliver(ctx context.Context, tx data.Transaction) error {
	if !govalidator.IsURL(tx.CallbackURL) {
		return fmt.Errorf("callback URL %q is not a valid URL", tx.CallbackURL)
	}

	body, err := json.Marshal(payloadFromTransaction(tx))
	if err != nil {
		return fmt.Errorf("marshalling status payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tx.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if n.jwtManager != nil {
		token, tokenErr := n.jwtManager.GenerateCallbackToken(tx.ID)
		if tokenErr != nil {
			return fmt.Errorf("generating callback token: %w", tokenErr)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting status callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("callback responded with status %d", resp.StatusCode)
	}

	return nil
}
