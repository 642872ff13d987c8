// Package ledgerdelivery manages delivery layer of money movements.
package ledgerdelivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/pet-ledger/internal/apierror"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/web"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service provides service layer interface needed by ledger delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package ledgerdelivery
type Service interface {
	GetAccount(ctx context.Context, id int64) (domain.Account, bool, error)
	GetTransaction(ctx context.Context, id int64) (domain.Transaction, bool, error)
	Deposit(ctx context.Context, arg domain.PostingParams) (domain.PostingResult, error)
	Withdraw(ctx context.Context, arg domain.PostingParams) (domain.PostingResult, error)
	Transfer(ctx context.Context, arg domain.TransferParams) (domain.TransferResult, error)
}

// Handler facilitates ledger delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns ledger handler.
func NewHandler(ls Service) *Handler {
	return &Handler{service: ls}
}

type uriRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

type postingRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"amount"`
	Description string          `json:"description" binding:"max=255"`
}

type postingData struct {
	Posting domain.PostingResult `json:"posting"`
}

// Deposit handles http request to deposit money into the caller's account.
func (h *Handler) Deposit(gctx *gin.Context) {
	h.post(gctx, h.service.Deposit)
}

// Withdraw handles http request to withdraw money from the caller's account.
func (h *Handler) Withdraw(gctx *gin.Context) {
	h.post(gctx, h.service.Withdraw)
}

func (h *Handler) post(gctx *gin.Context, apply func(context.Context, domain.PostingParams) (domain.PostingResult, error)) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri uriRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	var req postingRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	if !h.owns(gctx, uri.ID) {
		return
	}

	result, err := apply(ctx, domain.PostingParams{
		AccountID:   uri.ID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		apierror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Data(postingData{result}))
}

type transferRequest struct {
	FromAccountID int64           `json:"from_account_id" binding:"required,min=1"`
	ToAccountID   int64           `json:"to_account_id" binding:"required,min=1,nefield=FromAccountID"`
	Amount        decimal.Decimal `json:"amount" binding:"amount"`
	Description   string          `json:"description" binding:"max=255"`
}

type transferData struct {
	Transfer domain.TransferResult `json:"transfer"`
}

// Transfer handles http request to move money from the caller's account to another account.
func (h *Handler) Transfer(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req transferRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	if !h.owns(gctx, req.FromAccountID) {
		return
	}

	result, err := h.service.Transfer(ctx, domain.TransferParams{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Description:   req.Description,
	})
	if err != nil {
		apierror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Data(transferData{result}))
}

type transactionData struct {
	Transaction domain.Transaction `json:"transaction"`
}

// GetTransaction handles http request to get a transaction touching one of the caller's accounts.
func (h *Handler) GetTransaction(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var uri uriRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	t, ok, err := h.service.GetTransaction(ctx, uri.ID)
	if err != nil {
		apierror.Respond(gctx, err)
		return
	}

	if !ok {
		apierror.Respond(gctx, domain.ErrTransactionNotFound)
		return
	}

	ownerID := middleware.OwnerID(gctx)

	for _, id := range t.Movement.AccountIDs() {
		a, found, err := h.service.GetAccount(ctx, id)
		if err != nil {
			apierror.Respond(gctx, err)
			return
		}

		if found && a.OwnerID == ownerID {
			gctx.JSON(http.StatusOK, web.Data(transactionData{t}))
			return
		}
	}

	apierror.Respond(gctx, domain.ErrAccountOwnerMismatch)
}

// owns writes the error response and returns false unless the account exists and belongs to the caller.
func (h *Handler) owns(gctx *gin.Context, accountID int64) bool {
	a, ok, err := h.service.GetAccount(gctx.Request.Context(), accountID)
	if err != nil {
		apierror.Respond(gctx, err)
		return false
	}

	if !ok {
		apierror.Respond(gctx, domain.ErrAccountNotFound)
		return false
	}

	if a.OwnerID != middleware.OwnerID(gctx) {
		apierror.Respond(gctx, domain.ErrAccountOwnerMismatch)
		return false
	}

	return true
}
