// Package horizonx wraps the Horizon client types the processor relies on: error
// decoding, account helpers and result XDR parsing.
package horizonx

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/support/render/problem"
	"golang.org/x/exp/slices"

	"github.com/stellar/anchor-deposits-processor/internal/utils"
)

// Error decorates a failed Horizon call with the decoded problem and result codes, and
// exposes the predicates the submission pipeline routes on.
type Error struct {
	StatusCode  int
	Problem     problem.P
	Err         error
	ResultCodes *horizon.TransactionResultCodes
}

func WrapError(err error) *Error {
	if err == nil {
		return nil
	}

	hError := horizonclient.GetError(err)
	if hError == nil {
		return &Error{
			Err: err,
		}
	}

	resultCodes, resCodeErr := hError.ResultCodes()
	if resCodeErr != nil {
		log.Errorf("parsing result_codes: %v", resCodeErr)
	}

	return &Error{
		Err:         err,
		Problem:     hError.Problem,
		StatusCode:  hError.Problem.Status,
		ResultCodes: resultCodes,
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	if !e.IsHorizonError() {
		return fmt.Sprintf("horizon response error: %v", e.Err)
	}

	msgBuilder := &strings.Builder{}
	msgBuilder.WriteString(fmt.Sprintf("horizon response error: StatusCode=%d", e.StatusCode))
	if e.Problem.Type != "" {
		msgBuilder.WriteString(fmt.Sprintf(", Type=%s", e.Problem.Type))
	}
	if e.Problem.Title != "" {
		msgBuilder.WriteString(fmt.Sprintf(", Title=%s", e.Problem.Title))
	}
	if e.Problem.Detail != "" {
		msgBuilder.WriteString(fmt.Sprintf(", Detail=%s", e.Problem.Detail))
	}
	if e.HasResultCodes() {
		e.appendResultCodes(msgBuilder)
	}
	return msgBuilder.String()
}

func (e *Error) IsHorizonError() bool {
	return !utils.IsEmpty(e.Problem)
}

func (e *Error) IsNotFound() bool {
	return e.IsHorizonError() && e.StatusCode == http.StatusNotFound
}

func (e *Error) IsRateLimit() bool {
	return e.IsHorizonError() && e.StatusCode == http.StatusTooManyRequests
}

func (e *Error) IsGatewayTimeout() bool {
	return e.IsHorizonError() && e.StatusCode == http.StatusGatewayTimeout
}

// IsTransient reports whether the failure is worth retrying later without changing
// anything: network-level errors, Horizon outages, rate limits and timeouts.
func (e *Error) IsTransient() bool {
	if !e.IsHorizonError() {
		return true
	}
	return e.IsRateLimit() || e.IsGatewayTimeout() || e.StatusCode >= http.StatusInternalServerError
}

func (e *Error) HasResultCodes() bool {
	return e.IsHorizonError() && e.ResultCodes != nil
}

// IsNotEnoughLumens verifies if the Horizon Error is related to the transaction
// attempting to bring the source account lumens balance below the minimum reserve.
func (e *Error) IsNotEnoughLumens() bool {
	if !e.HasResultCodes() {
		return false
	}

	code := "tx_insufficient_balance"
	opCode := "op_underfunded"
	return (e.ResultCodes.TransactionCode == code ||
		e.ResultCodes.InnerTransactionCode == code ||
		slices.Contains(e.ResultCodes.OperationCodes, opCode))
}

// IsNoSourceAccount verifies if the Horizon Error is related to the source account not
// being found.
func (e *Error) IsNoSourceAccount() bool {
	if !e.HasResultCodes() {
		return false
	}

	txCode := "tx_no_source_account"
	opCode := "op_no_source_account"
	return (e.ResultCodes.TransactionCode == txCode ||
		e.ResultCodes.InnerTransactionCode == txCode ||
		slices.Contains(e.ResultCodes.OperationCodes, opCode))
}

// IsSourceAccountNotAuthorized verifies if the Horizon Error is related to the source
// account not having authorization from the asset issuer to send the asset.
func (e *Error) IsSourceAccountNotAuthorized() bool {
	if !e.HasResultCodes() {
		return false
	}

	opCode := "op_src_not_authorized"
	return slices.Contains(e.ResultCodes.OperationCodes, opCode)
}

// IsSourceNoTrustline verifies if the Horizon Error is related to the source account not
// having a trustline for the asset being sent.
func (e *Error) IsSourceNoTrustline() bool {
	if !e.HasResultCodes() {
		return false
	}

	opCode := "op_src_no_trust"
	return slices.Contains(e.ResultCodes.OperationCodes, opCode)
}

// IsDestinationNoTrustline verifies if the Horizon Error is related to the destination
// account not having a trustline for the asset being sent.
func (e *Error) IsDestinationNoTrustline() bool {
	if !e.HasResultCodes() {
		return false
	}

	opCode := "op_no_trust"
	return slices.Contains(e.ResultCodes.OperationCodes, opCode)
}

// IsNoDestinationAccount verifies if the Horizon Error is related to the destination
// account not existing.
func (e *Error) IsNoDestinationAccount() bool {
	if !e.HasResultCodes() {
		return false
	}

	opCode := "op_no_destination"
	return slices.Contains(e.ResultCodes.OperationCodes, opCode)
}

// IsBadAuthentication verifies if the Horizon Error is related to invalid transaction or
// operation signatures.
func (e *Error) IsBadAuthentication() bool {
	if !e.HasResultCodes() {
		return false
	}

	txCodes := []string{"tx_bad_auth", "tx_bad_auth_extra"}
	opCode := "op_bad_auth"
	return (slices.Contains(txCodes, e.ResultCodes.TransactionCode) ||
		slices.Contains(txCodes, e.ResultCodes.InnerTransactionCode) ||
		slices.Contains(e.ResultCodes.OperationCodes, opCode))
}

// IsSourceAccountNotReady gathers the errors caused by a misconfiguration of the
// transaction's source account. Retrying won't help until an operator fixes the account.
func (e *Error) IsSourceAccountNotReady() bool {
	return (e.IsNotEnoughLumens() ||
		e.IsNoSourceAccount() ||
		e.IsSourceAccountNotAuthorized() ||
		e.IsSourceNoTrustline())
}

// ShouldMarkAsError determines whether the submission failed for a reason that retrying
// cannot fix, based on the transaction error code or failed op codes.
func (e *Error) ShouldMarkAsError() bool {
	if !e.HasResultCodes() {
		return false
	}

	failedTxErrCodes := []string{
		"tx_bad_auth",
		"tx_bad_auth_extra",
		"tx_insufficient_balance",
	}
	if slices.Contains(failedTxErrCodes, e.ResultCodes.TransactionCode) || slices.Contains(failedTxErrCodes, e.ResultCodes.InnerTransactionCode) {
		return true
	}

	failedOpCodes := []string{
		"op_bad_auth",
		"op_underfunded",
		"op_src_not_authorized",
		"op_no_destination",
		"op_no_trust",
		"op_line_full",
		"op_not_authorized",
		"op_no_issuer",
	}
	for _, opResult := range e.ResultCodes.OperationCodes {
		if slices.Contains(failedOpCodes, opResult) {
			return true
		}
	}

	return false
}

func (e *Error) appendResultCodes(msgBuilder *strings.Builder) {
	extras := []string{}
	if e.ResultCodes.TransactionCode != "" {
		extras = append(extras, fmt.Sprintf("transaction: %s", e.ResultCodes.TransactionCode))
	}
	if e.ResultCodes.InnerTransactionCode != "" {
		extras = append(extras, fmt.Sprintf("inner transaction: %s", e.ResultCodes.InnerTransactionCode))
	}
	if len(e.ResultCodes.OperationCodes) > 0 {
		extras = append(extras, fmt.Sprintf("operation codes: [ %s ]", strings.Join(e.ResultCodes.OperationCodes, ", ")))
	}
	if len(extras) > 0 {
		msgBuilder.WriteString(fmt.Sprintf(", Extras=%s", strings.Join(extras, ", ")))
	}
}

var _ error = (*Error)(nil)
