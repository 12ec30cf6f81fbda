package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/strkey"

	"github.com/stellar/anchor-deposits-processor/db"
	"github.com/stellar/anchor-deposits-processor/internal/utils"
)

var ErrRecordNotFound = errors.New("record not found")

// SubmitTransactionQueueName is the queue claimed by rows that are handed to the
// submission pipeline.
const SubmitTransactionQueueName = "SUBMIT_TRANSACTION_QUEUE"

type TransactionKind string

const (
	TransactionKindDeposit         TransactionKind = "deposit"
	TransactionKindDepositExchange TransactionKind = "deposit-exchange"
)

func (kind TransactionKind) Validate() error {
	switch kind {
	case TransactionKindDeposit, TransactionKindDepositExchange:
		return nil
	default:
		return fmt.Errorf("invalid transaction kind %q", kind)
	}
}

// supportedKinds scopes every processor query so rows of other kinds sharing the table
// are never picked up.
var supportedKinds = []string{
	string(TransactionKindDeposit),
	string(TransactionKindDepositExchange),
}

type Transaction struct {
	ID   string          `db:"id"`
	Kind TransactionKind `db:"kind"`

	AssetCode                string `db:"asset_code"`
	AssetIssuer              string `db:"asset_issuer"`
	AssetSignificantDecimals int32  `db:"asset_significant_decimals"`
	// QuoteID references the firm exchange quote backing a deposit-exchange. Quoted
	// deposits arrive with amount_fee and amount_out already priced.
	QuoteID string `db:"quote_id"`

	ToAddress string              `db:"to_address"`
	AmountIn  decimal.NullDecimal `db:"amount_in"`
	AmountFee decimal.NullDecimal `db:"amount_fee"`
	AmountOut decimal.NullDecimal `db:"amount_out"`

	// Status and SubmissionStatus always move together through the model's MarkAs*
	// methods. Don't change them directly.
	Status           TransactionStatus `db:"status"`
	SubmissionStatus SubmissionStatus  `db:"submission_status"`
	StatusMessage    string            `db:"status_message"`

	// PendingSignatures is true while a multisig envelope is waiting for signatures.
	PendingSignatures bool `db:"pending_signatures"`
	// EnvelopeXDR is a pre-built transaction envelope to submit as-is, when present.
	EnvelopeXDR               string `db:"envelope_xdr"`
	ClaimableBalanceSupported bool   `db:"claimable_balance_supported"`
	ClaimableBalanceID        string `db:"claimable_balance_id"`
	StellarTransactionID      string `db:"stellar_transaction_id"`
	PagingToken               string `db:"paging_token"`

	Queue string `db:"queue"`
	// QueuedAt is when the row was first claimed for submission. It is preserved across
	// re-queues so that restarts keep the original FIFO order.
	QueuedAt    *time.Time `db:"queued_at"`
	CompletedAt *time.Time `db:"completed_at"`
	CallbackURL string     `db:"callback_url"`

	CreatedAt *time.Time `db:"created_at"`
	UpdatedAt *time.Time `db:"updated_at"`
}

// State returns the composite state used by the transition checks.
func (tx *Transaction) State() TransactionState {
	return TransactionState{Status: tx.Status, SubmissionStatus: tx.SubmissionStatus}
}

// IsQuoted reports whether the deposit is backed by a firm exchange quote.
func (tx *Transaction) IsQuoted() bool {
	return tx.QuoteID != ""
}

// validate checks if the transaction fields are valid and can be added to the DB.
func (tx *Transaction) validate() error {
	if err := tx.Kind.Validate(); err != nil {
		return err
	}

	if len(tx.AssetCode) < 1 || len(tx.AssetCode) > 12 {
		return fmt.Errorf("asset code must have between 1 and 12 characters")
	}
	if strings.ToLower(tx.AssetCode) != "xlm" {
		if tx.AssetIssuer == "" {
			return fmt.Errorf("asset issuer is required")
		}
		if !strkey.IsValidEd25519PublicKey(tx.AssetIssuer) {
			return fmt.Errorf("asset issuer %q is not a valid ed25519 public key", tx.AssetIssuer)
		}
	}

	if !strkey.IsValidEd25519PublicKey(tx.ToAddress) && !strkey.IsValidMuxedAccountEd25519PublicKey(tx.ToAddress) {
		return fmt.Errorf("destination %q is not a valid ed25519 public key or muxed account", tx.ToAddress)
	}

	if tx.Kind == TransactionKindDepositExchange && tx.QuoteID == "" {
		return fmt.Errorf("quote ID is required for %s transactions", TransactionKindDepositExchange)
	}

	return nil
}

// transactionColumnNames is the SELECT/RETURNING column list. Nullable text columns are
// coalesced so they can scan into plain strings.
const transactionColumnNames = `
	id,
	kind,
	asset_code,
	asset_issuer,
	asset_significant_decimals,
	COALESCE(quote_id, '') AS quote_id,
	to_address,
	amount_in,
	amount_fee,
	amount_out,
	status,
	COALESCE(submission_status, '') AS submission_status,
	COALESCE(status_message, '') AS status_message,
	pending_signatures,
	COALESCE(envelope_xdr, '') AS envelope_xdr,
	claimable_balance_supported,
	COALESCE(claimable_balance_id, '') AS claimable_balance_id,
	COALESCE(stellar_transaction_id, '') AS stellar_transaction_id,
	COALESCE(paging_token, '') AS paging_token,
	COALESCE(queue, '') AS queue,
	queued_at,
	completed_at,
	COALESCE(callback_url, '') AS callback_url,
	created_at,
	updated_at
`

type TransactionModel struct {
	DBConnectionPool db.DBConnectionPool
}

func NewTransactionModel(dbConnectionPool db.DBConnectionPool) *TransactionModel {
	return &TransactionModel{DBConnectionPool: dbConnectionPool}
}

// Get gets a Transaction from the database.
func (t *TransactionModel) Get(ctx context.Context, sqlExec db.SQLExecuter, txID string) (*Transaction, error) {
	var transaction Transaction
	query := `
		SELECT
			` + transactionColumnNames + `
		FROM
			deposit_transactions
		WHERE
			id = $1
		`
	err := sqlExec.GetContext(ctx, &transaction, query, txID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying transaction ID %s: %w", txID, err)
	}
	return &transaction, nil
}

// Insert adds a new Transaction to the database.
func (t *TransactionModel) Insert(ctx context.Context, tx Transaction) (*Transaction, error) {
	if err := tx.validate(); err != nil {
		return nil, fmt.Errorf("validating transaction for insertion: %w", err)
	}

	if tx.Status == "" {
		tx.Status = TransactionStatusPendingUserTransferStart
	}

	var insertedTx Transaction
	query := `
		INSERT INTO deposit_transactions
			(kind, asset_code, asset_issuer, asset_significant_decimals, quote_id, to_address, amount_in, status, pending_signatures, envelope_xdr, claimable_balance_supported, callback_url)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING
			` + transactionColumnNames
	err := t.DBConnectionPool.GetContext(ctx, &insertedTx, query,
		tx.Kind,
		tx.AssetCode,
		tx.AssetIssuer,
		tx.AssetSignificantDecimals,
		utils.SQLNullString(tx.QuoteID),
		tx.ToAddress,
		tx.AmountIn,
		tx.Status,
		tx.PendingSignatures,
		utils.SQLNullString(tx.EnvelopeXDR),
		tx.ClaimableBalanceSupported,
		utils.SQLNullString(tx.CallbackURL),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting transaction: %w", err)
	}

	return &insertedTx, nil
}

// GetPendingDeposits returns the rows that are candidates for off-chain funding checks:
// deposits still waiting on the user transfer that the processor has not routed yet.
func (t *TransactionModel) GetPendingDeposits(ctx context.Context) ([]*Transaction, error) {
	var transactions []*Transaction
	query := `
		SELECT
			` + transactionColumnNames + `
		FROM
			deposit_transactions
		WHERE
			kind = ANY($1)
			AND status = ANY($2)
			AND (submission_status IS NULL OR submission_status = '')
		ORDER BY
			created_at ASC
		`
	candidateStatuses := []string{
		string(TransactionStatusPendingUserTransferStart),
		string(TransactionStatusPendingExternal),
	}
	err := t.DBConnectionPool.SelectContext(ctx, &transactions, query, pq.Array(supportedKinds), pq.Array(candidateStatuses))
	if err != nil {
		return nil, fmt.Errorf("querying pending deposits: %w", err)
	}
	return transactions, nil
}

// GetQueuedForResubmission returns the rows claimed by the given queue that were in flight
// when the previous instance stopped, in original claim order.
func (t *TransactionModel) GetQueuedForResubmission(ctx context.Context, queueName string) ([]*Transaction, error) {
	var transactions []*Transaction
	query := `
		SELECT
			` + transactionColumnNames + `
		FROM
			deposit_transactions
		WHERE
			kind = ANY($1)
			AND queue = $2
			AND submission_status = ANY($3)
			AND queued_at IS NOT NULL
		ORDER BY
			queued_at ASC
		`
	inFlightStatuses := []string{
		string(SubmissionStatusReady),
		string(SubmissionStatusProcessing),
		string(SubmissionStatusPending),
	}
	err := t.DBConnectionPool.SelectContext(ctx, &transactions, query, pq.Array(supportedKinds), queueName, pq.Array(inFlightStatuses))
	if err != nil {
		return nil, fmt.Errorf("querying queued transactions: %w", err)
	}
	return transactions, nil
}

// GetPendingTrust returns the rows parked until their destination account establishes a
// trustline.
func (t *TransactionModel) GetPendingTrust(ctx context.Context) ([]*Transaction, error) {
	return t.getBySubmissionStatus(ctx, TransactionStatusPendingTrust, SubmissionStatusPendingTrust)
}

// GetPendingFunding returns the rows parked until their destination account is funded by
// the user.
func (t *TransactionModel) GetPendingFunding(ctx context.Context) ([]*Transaction, error) {
	return t.getBySubmissionStatus(ctx, TransactionStatusPendingUser, SubmissionStatusPendingFunding)
}

func (t *TransactionModel) getBySubmissionStatus(ctx context.Context, status TransactionStatus, submissionStatus SubmissionStatus) ([]*Transaction, error) {
	var transactions []*Transaction
	query := `
		SELECT
			` + transactionColumnNames + `
		FROM
			deposit_transactions
		WHERE
			kind = ANY($1)
			AND status = $2
			AND submission_status = $3
		ORDER BY
			created_at ASC
		`
	err := t.DBConnectionPool.SelectContext(ctx, &transactions, query, pq.Array(supportedKinds), status, submissionStatus)
	if err != nil {
		return nil, fmt.Errorf("querying transactions with status %s/%s: %w", status, submissionStatus, err)
	}
	return transactions, nil
}

// GetUnblockedOrSigned returns unclaimed pending_anchor rows that became submittable out
// of band: either an operator unblocked them, or a multisig envelope collected its
// signatures.
func (t *TransactionModel) GetUnblockedOrSigned(ctx context.Context) ([]*Transaction, error) {
	var transactions []*Transaction
	query := `
		SELECT
			` + transactionColumnNames + `
		FROM
			deposit_transactions
		WHERE
			kind = ANY($1)
			AND status = $2
			AND queue IS NULL
			AND (
				submission_status = $3
				OR (
					pending_signatures = FALSE
					AND envelope_xdr IS NOT NULL
					AND (submission_status IS NULL OR submission_status = '')
				)
			)
		ORDER BY
			created_at ASC
		`
	err := t.DBConnectionPool.SelectContext(ctx, &transactions, query, pq.Array(supportedKinds), TransactionStatusPendingAnchor, SubmissionStatusUnblocked)
	if err != nil {
		return nil, fmt.Errorf("querying unblocked or signed transactions: %w", err)
	}
	return transactions, nil
}

// checkTransition validates that tx is allowed to move to target.
func checkTransition(tx Transaction, target TransactionState) error {
	if err := tx.State().CanTransitionTo(target); err != nil {
		return fmt.Errorf("attempting to transition transaction %s: %w", tx.ID, err)
	}
	return nil
}

// MarkAsReady queues the transaction for submission. The original queued_at is preserved
// across re-queues to keep the FIFO order stable.
func (t *TransactionModel) MarkAsReady(ctx context.Context, sqlExec db.SQLExecuter, tx Transaction) (*Transaction, error) {
	target := TransactionState{Status: TransactionStatusPendingAnchor, SubmissionStatus: SubmissionStatusReady}
	if err := checkTransition(tx, target); err != nil {
		return nil, err
	}

	var updatedTx Transaction
	query := `
		UPDATE
			deposit_transactions
		SET
			status = $1,
			submission_status = $2,
			queue = $3,
			queued_at = COALESCE(queued_at, NOW())
		WHERE
			id = $4
		RETURNING
			` + transactionColumnNames
	err := sqlExec.GetContext(ctx, &updatedTx, query, target.Status, target.SubmissionStatus, SubmitTransactionQueueName, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("marking transaction %s as ready: %w", tx.ID, err)
	}
	return &updatedTx, nil
}

// MarkAsProcessing flags the transaction as actively being submitted.
func (t *TransactionModel) MarkAsProcessing(ctx context.Context, sqlExec db.SQLExecuter, tx Transaction) (*Transaction, error) {
	target := TransactionState{Status: TransactionStatusPendingAnchor, SubmissionStatus: SubmissionStatusProcessing}
	return t.updateState(ctx, sqlExec, tx, target)
}

// MarkAsPending flags the transaction's latest submission outcome as unknown, to be
// retried.
func (t *TransactionModel) MarkAsPending(ctx context.Context, sqlExec db.SQLExecuter, tx Transaction) (*Transaction, error) {
	target := TransactionState{Status: TransactionStatusPendingAnchor, SubmissionStatus: SubmissionStatusPending}
	return t.updateState(ctx, sqlExec, tx, target)
}

// updateState performs a plain status/submission_status move that keeps every other
// column intact.
func (t *TransactionModel) updateState(ctx context.Context, sqlExec db.SQLExecuter, tx Transaction, target TransactionState) (*Transaction, error) {
	if err := checkTransition(tx, target); err != nil {
		return nil, err
	}

	var updatedTx Transaction
	query := `
		UPDATE
			deposit_transactions
		SET
			status = $1,
			submission_status = $2
		WHERE
			id = $3
		RETURNING
			` + transactionColumnNames
	err := sqlExec.GetContext(ctx, &updatedTx, query, target.Status, target.SubmissionStatus, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("marking transaction %s as %s/%s: %w", tx.ID, target.Status, target.SubmissionStatus, err)
	}
	return &updatedTx, nil
}

// MarkAsPendingTrust parks the transaction until the destination account establishes the
// asset trustline. The queue claim is released so the trustline checker owns the row.
func (t *TransactionModel) MarkAsPendingTrust(ctx context.Context, sqlExec db.SQLExecuter, tx Transaction) (*Transaction, error) {
	target := TransactionState{Status: TransactionStatusPendingTrust, SubmissionStatus: SubmissionStatusPendingTrust}
	if err := checkTransition(tx, target); err != nil {
		return nil, err
	}

	var updatedTx Transaction
	query := `
		UPDATE
			deposit_transactions
		SET
			status = $1,
			submission_status = $2,
			queue = NULL,
			queued_at = NULL
		WHERE
			id = $3
		RETURNING
			` + transactionColumnNames
	err := sqlExec.GetContext(ctx, &updatedTx, query, target.Status, target.SubmissionStatus, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("marking transaction %s as pending_trust: %w", tx.ID, err)
	}
	return &updatedTx, nil
}

// MarkAsPendingFunding parks the transaction until the user funds the destination
// account.
func (t *TransactionModel) MarkAsPendingFunding(ctx context.Context, sqlExec db.SQLExecuter, tx Transaction) (*Transaction, error) {
	target := TransactionState{Status: TransactionStatusPendingUser, SubmissionStatus: SubmissionStatusPendingFunding}
	return t.updateState(ctx, sqlExec, tx, target)
}

// MarkAsBlocked parks the transaction for operator intervention and releases the queue
// claim.
func (t *TransactionModel) MarkAsBlocked(ctx context.Context, sqlExec db.SQLExecuter, tx Transaction, message string) (*Transaction, error) {
	target := TransactionState{Status: TransactionStatusPendingAnchor, SubmissionStatus: SubmissionStatusBlocked}
	if err := checkTransition(tx, target); err != nil {
		return nil, err
	}

	var updatedTx Transaction
	query := `
		UPDATE
			deposit_transactions
		SET
			status = $1,
			submission_status = $2,
			status_message = $3,
			queue = NULL,
			queued_at = NULL
		WHERE
			id = $4
		RETURNING
			` + transactionColumnNames
	err := sqlExec.GetContext(ctx, &updatedTx, query, target.Status, target.SubmissionStatus, message, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("marking transaction %s as blocked: %w", tx.ID, err)
	}
	return &updatedTx, nil
}

// MarkAsUnblocked releases a blocked transaction so the scavenger re-queues it. It is
// meant to be called by operator tooling.
func (t *TransactionModel) MarkAsUnblocked(ctx context.Context, sqlExec db.SQLExecuter, tx Transaction) (*Transaction, error) {
	target := TransactionState{Status: TransactionStatusPendingAnchor, SubmissionStatus: SubmissionStatusUnblocked}
	return t.updateState(ctx, sqlExec, tx, target)
}

// MarkAsError moves the transaction to its terminal failed state.
func (t *TransactionModel) MarkAsError(ctx context.Context, sqlExec db.SQLExecuter, tx Transaction, message string) (*Transaction, error) {
	target := TransactionState{Status: TransactionStatusError, SubmissionStatus: SubmissionStatusFailed}
	if err := checkTransition(tx, target); err != nil {
		return nil, err
	}

	var updatedTx Transaction
	query := `
		UPDATE
			deposit_transactions
		SET
			status = $1,
			submission_status = $2,
			status_message = $3,
			completed_at = NOW(),
			queue = NULL,
			queued_at = NULL
		WHERE
			id = $4
		RETURNING
			` + transactionColumnNames
	err := sqlExec.GetContext(ctx, &updatedTx, query, target.Status, target.SubmissionStatus, message, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("marking transaction %s as error: %w", tx.ID, err)
	}
	return &updatedTx, nil
}

// MarkAsCompleted moves the transaction to its terminal success state, recording the
// confirmed Stellar transaction.
func (t *TransactionModel) MarkAsCompleted(ctx context.Context, sqlExec db.SQLExecuter, tx Transaction, stellarTransactionID, pagingToken string) (*Transaction, error) {
	target := TransactionState{Status: TransactionStatusCompleted, SubmissionStatus: SubmissionStatusCompleted}
	if err := checkTransition(tx, target); err != nil {
		return nil, err
	}

	if len(stellarTransactionID) != 64 {
		return nil, fmt.Errorf("invalid stellar transaction ID %q", stellarTransactionID)
	}

	var updatedTx Transaction
	query := `
		UPDATE
			deposit_transactions
		SET
			status = $1,
			submission_status = $2,
			stellar_transaction_id = $3,
			paging_token = $4,
			completed_at = NOW(),
			queue = NULL,
			queued_at = NULL
		WHERE
			id = $5
		RETURNING
			` + transactionColumnNames
	err := sqlExec.GetContext(ctx, &updatedTx, query, target.Status, target.SubmissionStatus, stellarTransactionID, utils.SQLNullString(pagingToken), tx.ID)
	if err != nil {
		return nil, fmt.Errorf("marking transaction %s as completed: %w", tx.ID, err)
	}
	return &updatedTx, nil
}

// UpdateAmounts persists the amounts reported by the rails or derived by the submitter.
func (t *TransactionModel) UpdateAmounts(ctx context.Context, sqlExec db.SQLExecuter, txID string, amountIn, amountFee, amountOut decimal.NullDecimal) (*Transaction, error) {
	var updatedTx Transaction
	query := `
		UPDATE
			deposit_transactions
		SET
			amount_in = $1,
			amount_fee = $2,
			amount_out = $3
		WHERE
			id = $4
		RETURNING
			` + transactionColumnNames
	err := sqlExec.GetContext(ctx, &updatedTx, query, amountIn, amountFee, amountOut, txID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating amounts of transaction %s: %w", txID, err)
	}
	return &updatedTx, nil
}

// UpdateClaimableBalanceID records the claimable balance created for the deposit.
func (t *TransactionModel) UpdateClaimableBalanceID(ctx context.Context, sqlExec db.SQLExecuter, txID, claimableBalanceID string) (*Transaction, error) {
	var updatedTx Transaction
	query := `
		UPDATE
			deposit_transactions
		SET
			claimable_balance_id = $1
		WHERE
			id = $2
		RETURNING
			` + transactionColumnNames
	err := sqlExec.GetContext(ctx, &updatedTx, query, claimableBalanceID, txID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating claimable balance ID of transaction %s: %w", txID, err)
	}
	return &updatedTx, nil
}

// ClearEnvelopeXDR drops a stale pre-built envelope so the submitter rebuilds the
// transaction from scratch.
func (t *TransactionModel) ClearEnvelopeXDR(ctx context.Context, sqlExec db.SQLExecuter, txID string) (*Transaction, error) {
	var updatedTx Transaction
	query := `
		UPDATE
			deposit_transactions
		SET
			envelope_xdr = NULL
		WHERE
			id = $1
		RETURNING
			` + transactionColumnNames
	err := sqlExec.GetContext(ctx, &updatedTx, query, txID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("clearing envelope of transaction %s: %w", txID, err)
	}
	return &updatedTx, nil
}

// ClearSubmissionArtifacts drops the leftovers of previous submission attempts before a
// parked row rejoins the pipeline.
func (t *TransactionModel) ClearSubmissionArtifacts(ctx context.Context, sqlExec db.SQLExecuter, txID string) (*Transaction, error) {
	var updatedTx Transaction
	query := `
		UPDATE
			deposit_transactions
		SET
			envelope_xdr = NULL,
			stellar_transaction_id = NULL
		WHERE
			id = $1
		RETURNING
			` + transactionColumnNames
	err := sqlExec.GetContext(ctx, &updatedTx, query, txID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("clearing submission artifacts of transaction %s: %w", txID, err)
	}
	return &updatedTx, nil
}
