package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"water-vending-backend/internal/mw"
)

// GetWallet handles GET /api/me/wallet.
func (h *Handler) GetWallet(c *gin.Context) {
	wallet, err := h.store.WalletByUser(c.Request.Context(), mw.UserID(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch wallet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balanceCents": wallet.BalanceCents})
}

type topUpRequest struct {
	AmountCents int64 `json:"amountCents" binding:"required,gt=0"`
}

// TopUpWallet handles POST /api/me/wallet/topup. In production the amount
// comes from a captured payment-element charge; the payment capture itself
// happens at the hosted payment provider, this endpoint only credits the
// ledger.
func (h *Handler) TopUpWallet(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.store.CreditWallet(c.Request.Context(), mw.UserID(c), req.AmountCents)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to credit wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balanceCents": entry.BalanceAfterCents,
		"txId":         entry.TxID,
	})
}

// transactionResponse is one ledger entry in the history listing.
type transactionResponse struct {
	TxID               string    `json:"txId"`
	Kind               string    `json:"kind"`
	MachineCode        string    `json:"machineCode,omitempty"`
	Location           string    `json:"location,omitempty"`
	Liters             float64   `json:"liters,omitempty"`
	AmountCents        int64     `json:"amountCents"`
	BalanceAfterCents  int64     `json:"balanceAfterCents"`
	CreatedAt          time.Time `json:"createdAt"`
}

// GetTransactions handles GET /api/me/transactions.
func (h *Handler) GetTransactions(c *gin.Context) {
	entries, err := h.store.TransactionsByUser(c.Request.Context(), mw.UserID(c), 50)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	responses := make([]transactionResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, transactionResponse{
			TxID:              e.TxID,
			Kind:              e.Kind,
			MachineCode:       e.MachineCode,
			Location:          e.Location,
			Liters:            e.Liters,
			AmountCents:       e.AmountCents,
			BalanceAfterCents: e.BalanceAfterCents,
			CreatedAt:         e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, responses)
}
