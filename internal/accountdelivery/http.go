// Package accountdelivery manages delivery layer of accounts.
package accountdelivery

import (
	"context"
	"iter"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/pet-ledger/internal/apierror"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/web"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service provides service layer interface needed by account delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package accountdelivery
type Service interface {
	OpenAccount(ctx context.Context, ownerID int64, kind domain.AccountKind) (domain.Account, error)
	GetAccount(ctx context.Context, id int64) (domain.Account, bool, error)
	ListAccounts(ctx context.Context, ownerID int64) ([]domain.Account, error)
	GetBalance(ctx context.Context, id int64) (decimal.Decimal, bool, error)
	History(ctx context.Context, accountID int64, limit int) iter.Seq2[domain.Transaction, error]
	Freeze(ctx context.Context, id int64) (domain.Account, error)
	Unfreeze(ctx context.Context, id int64) (domain.Account, error)
	Close(ctx context.Context, id int64) (domain.Account, error)
}

// Handler facilitates account delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns account handler.
func NewHandler(as Service) *Handler {
	return &Handler{service: as}
}

type accountData struct {
	Account domain.Account `json:"account"`
}

type createRequest struct {
	Kind string `json:"kind" binding:"required,accountkind"`
}

// Create handles http request to open an account for the caller.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	account, err := h.service.OpenAccount(ctx, middleware.OwnerID(gctx), domain.AccountKind(req.Kind))
	if err != nil {
		apierror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, web.Data(accountData{account}))
}

type uriRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// owned binds the account id from the uri and returns the account if it belongs to the caller.
func (h *Handler) owned(gctx *gin.Context) (domain.Account, bool) {
	ctx := gctx.Request.Context()

	var req uriRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return domain.Account{}, false
	}

	account, ok, err := h.service.GetAccount(ctx, req.ID)
	if err != nil {
		apierror.Respond(gctx, err)
		return domain.Account{}, false
	}

	if !ok {
		apierror.Respond(gctx, domain.ErrAccountNotFound)
		return domain.Account{}, false
	}

	if account.OwnerID != middleware.OwnerID(gctx) {
		apierror.Respond(gctx, domain.ErrAccountOwnerMismatch)
		return domain.Account{}, false
	}

	return account, true
}

// Get handles http request to get account.
func (h *Handler) Get(gctx *gin.Context) {
	account, ok := h.owned(gctx)
	if !ok {
		return
	}

	gctx.JSON(http.StatusOK, web.Data(accountData{account}))
}

type accountsData struct {
	Accounts []domain.Account `json:"accounts"`
}

// List handles http request to list the caller's accounts.
func (h *Handler) List(gctx *gin.Context) {
	accounts, err := h.service.ListAccounts(gctx.Request.Context(), middleware.OwnerID(gctx))
	if err != nil {
		apierror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Data(accountsData{accounts}))
}

type balanceData struct {
	AccountID int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// Balance handles http request to get the committed balance of an account.
func (h *Handler) Balance(gctx *gin.Context) {
	account, ok := h.owned(gctx)
	if !ok {
		return
	}

	balance, found, err := h.service.GetBalance(gctx.Request.Context(), account.ID)
	if err != nil {
		apierror.Respond(gctx, err)
		return
	}

	if !found {
		apierror.Respond(gctx, domain.ErrAccountNotFound)
		return
	}

	gctx.JSON(http.StatusOK, web.Data(balanceData{AccountID: account.ID, Balance: balance}))
}

type historyRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type historyData struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// History handles http request to list the transactions of an account, newest first.
func (h *Handler) History(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req historyRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	account, ok := h.owned(gctx)
	if !ok {
		return
	}

	items := []domain.Transaction{}

	for t, err := range h.service.History(ctx, account.ID, req.Limit) {
		if err != nil {
			apierror.Respond(gctx, err)
			return
		}

		items = append(items, t)
	}

	gctx.JSON(http.StatusOK, web.Data(historyData{items}))
}

// Freeze handles http request to freeze an account.
func (h *Handler) Freeze(gctx *gin.Context) {
	h.changeStatus(gctx, h.service.Freeze)
}

// Unfreeze handles http request to unfreeze an account.
func (h *Handler) Unfreeze(gctx *gin.Context) {
	h.changeStatus(gctx, h.service.Unfreeze)
}

// Close handles http request to close an account.
func (h *Handler) Close(gctx *gin.Context) {
	h.changeStatus(gctx, h.service.Close)
}

func (h *Handler) changeStatus(gctx *gin.Context, change func(context.Context, int64) (domain.Account, error)) {
	account, ok := h.owned(gctx)
	if !ok {
		return
	}

	updated, err := change(gctx.Request.Context(), account.ID)
	if err != nil {
		apierror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Data(accountData{updated}))
}
