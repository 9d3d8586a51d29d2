package ledger

import (
	"time"

	"github.com/google/uuid"
)

type createAccountRequest struct {
	Code         string `json:"code" validate:"required,min=3,max=10"`
	Name         string `json:"name" validate:"required,min=1,max=100"`
	AccountType  string `json:"account_type" validate:"required"`
	Category     string `json:"category" validate:"required"`
	Description  string `json:"description" validate:"omitempty,max=500"`
	DisplayOrder int32  `json:"display_order"`
}

// updateAccountRequest carries optional mutations. Code is decoded only
// so its presence can be rejected: the field is immutable.
type updateAccountRequest struct {
	Code         *string `json:"code"`
	Name         *string `json:"name" validate:"omitempty,min=1,max=100"`
	Category     *string `json:"category"`
	Description  *string `json:"description" validate:"omitempty,max=500"`
	DisplayOrder *int32  `json:"display_order"`
	IsActive     *bool   `json:"is_active"`
}

type postingRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid4"`
	Amount    int64  `json:"amount"`
	Direction string `json:"direction" validate:"required,oneof=DEBIT CREDIT"`
}

type postTransactionRequest struct {
	Date        string           `json:"date" validate:"required,datetime=2006-01-02"`
	Description string           `json:"description" validate:"omitempty,max=500"`
	Postings    []postingRequest `json:"postings" validate:"dive"`
}

type accountResponse struct {
	ID           uuid.UUID `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	AccountType  string    `json:"account_type"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`
	IsActive     bool      `json:"is_active"`
	DisplayOrder int32     `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID:           a.ID,
		Code:         a.Code,
		Name:         a.Name,
		AccountType:  string(a.Type),
		Category:     string(a.Category),
		Description:  a.Description,
		IsActive:     a.IsActive,
		DisplayOrder: a.DisplayOrder,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

type postingResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
	Display   string    `json:"display"`
	Direction string    `json:"direction"`
}

type transactionResponse struct {
	ID          uuid.UUID         `json:"id"`
	Date        string            `json:"date"`
	Description string            `json:"description,omitempty"`
	Seq         int64             `json:"seq"`
	CommittedAt time.Time         `json:"committed_at"`
	ReversalOf  *uuid.UUID        `json:"reversal_of,omitempty"`
	Postings    []postingResponse `json:"postings"`
}

func toTransactionResponse(txn Transaction) transactionResponse {
	out := transactionResponse{
		ID:          txn.ID,
		Date:        txn.Date.Format("2006-01-02"),
		Description: txn.Description,
		Seq:         txn.Seq,
		CommittedAt: txn.CommittedAt,
		ReversalOf:  txn.ReversalOf,
	}
	for _, p := range txn.Postings {
		out.Postings = append(out.Postings, postingResponse{
			AccountID: p.AccountID,
			Amount:    p.Amount,
			Display:   FormatAmount(p.Amount),
			Direction: string(p.Direction),
		})
	}
	return out
}

type balanceResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code"`
	Balance   int64     `json:"balance"`
	Display   string    `json:"display"`
	Side      string    `json:"side"`
	AsOf      string    `json:"as_of,omitempty"`
}

type trialBalanceLineResponse struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Type    string `json:"account_type"`
	Balance int64  `json:"balance"`
	Display string `json:"display"`
}

type trialBalanceResponse struct {
	Seq               int64                      `json:"seq"`
	AsOf              string                     `json:"as_of,omitempty"`
	TotalDebitNormal  int64                      `json:"total_debit_normal"`
	TotalCreditNormal int64                      `json:"total_credit_normal"`
	Lines             []trialBalanceLineResponse `json:"lines"`
}
