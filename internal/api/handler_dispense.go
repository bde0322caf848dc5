package api

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"water-vending-backend/internal/mw"
	"water-vending-backend/internal/store"
)

// Error codes returned by the dispense endpoint.
const (
	ErrCodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrCodeUnknownMachine     = "UNKNOWN_MACHINE"
	ErrCodeMachineUnavailable = "MACHINE_UNAVAILABLE"
	ErrCodeInvalidQuantity    = "INVALID_QUANTITY"
)

// GetDispenseConfig handles GET /api/dispense/config.
func (h *Handler) GetDispenseConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pricePerLiterCents": h.cfg.Dispense.PricePerLiterCents,
		"allowedLiters":      h.cfg.Dispense.AllowedLiters,
	})
}

type dispenseRequest struct {
	Liters    float64 `json:"liters" binding:"required,gt=0"`
	MachineID string  `json:"machineId" binding:"required"`
	Location  string  `json:"location"`
}

// dispenseResponse is the success body of POST /api/dispense. Balances here
// are authoritative; clients must overwrite any locally computed amount.
type dispenseResponse struct {
	AmountCents      int64   `json:"amountCents"`
	NewBalanceCents  int64   `json:"newBalanceCents"`
	PrevBalanceCents int64   `json:"prevBalanceCents"`
	FlowRateLpm      float64 `json:"flowRateLpm"`
	TxID             string  `json:"txId"`
}

// Dispense handles POST /api/dispense: one balance-checked purchase of a
// quantity of water from a specific machine. An optional Idempotency-Key
// header makes retries safe; replays within the TTL return the original
// response without charging again.
func (h *Handler) Dispense(c *gin.Context) {
	var req dispenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := mw.UserID(c)

	if key := c.GetHeader("Idempotency-Key"); key != "" {
		replay, release := h.idem.acquire(userID + "|" + key)
		defer release()
		if replay != nil {
			c.Data(replay.status, "application/json; charset=utf-8", replay.body)
			return
		}
		status, body := h.dispense(c, userID, req)
		if status != 0 {
			h.idem.store(userID+"|"+key, status, body)
			c.Data(status, "application/json; charset=utf-8", body)
		}
		return
	}

	status, body := h.dispense(c, userID, req)
	if status != 0 {
		c.Data(status, "application/json; charset=utf-8", body)
	}
}

// dispense executes the request and returns the response to send (and to
// store for idempotent replay). A zero status means the response was already
// written (internal errors are never replayed).
func (h *Handler) dispense(c *gin.Context, userID string, req dispenseRequest) (int, []byte) {
	if !h.quantityAllowed(req.Liters) {
		return marshalJSON(http.StatusBadRequest, gin.H{"error": ErrCodeInvalidQuantity})
	}

	machine, err := h.store.MachineByCode(c.Request.Context(), req.MachineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return marshalJSON(http.StatusBadRequest, gin.H{"error": ErrCodeUnknownMachine})
		}
		log.Printf("dispense: machine lookup failed for %s: %v", req.MachineID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to look up machine"})
		return 0, nil
	}
	if !machine.Dispensable() {
		return marshalJSON(http.StatusBadRequest, gin.H{"error": ErrCodeMachineUnavailable})
	}

	amountCents := int64(math.Round(req.Liters * float64(h.cfg.Dispense.PricePerLiterCents)))

	location := req.Location
	if location == "" {
		location = machine.Location
	}

	entry, err := h.store.DebitWallet(c.Request.Context(), userID, store.DispenseDebit{
		MachineCode: machine.Code,
		Location:    location,
		Liters:      req.Liters,
		AmountCents: amountCents,
	})
	if err != nil {
		var insufficient *store.InsufficientFundsError
		switch {
		case errors.As(err, &insufficient):
			return marshalJSON(http.StatusBadRequest, gin.H{
				"error":        ErrCodeInsufficientFunds,
				"amountCents":  insufficient.AmountCents,
				"balanceCents": insufficient.BalanceCents,
			})
		case errors.Is(err, store.ErrWalletNotFound):
			return marshalJSON(http.StatusBadRequest, gin.H{
				"error":        ErrCodeInsufficientFunds,
				"amountCents":  amountCents,
				"balanceCents": 0,
			})
		default:
			log.Printf("dispense: debit failed for user %s: %v", userID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to process dispense"})
			return 0, nil
		}
	}

	if h.receipts != nil {
		h.receipts.Dispatch(entry.ID)
	}

	flowRate := machine.FlowRateLpm
	if flowRate <= 0 {
		flowRate = h.cfg.Dispense.DefaultFlowRateLpm
	}

	return marshalJSON(http.StatusOK, dispenseResponse{
		AmountCents:      entry.AmountCents,
		NewBalanceCents:  entry.BalanceAfterCents,
		PrevBalanceCents: entry.BalanceBeforeCents,
		FlowRateLpm:      flowRate,
		TxID:             entry.TxID,
	})
}

func (h *Handler) quantityAllowed(liters float64) bool {
	for _, allowed := range h.cfg.Dispense.AllowedLiters {
		if liters == allowed {
			return true
		}
	}
	return false
}

func marshalJSON(status int, v any) (int, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// gin.H of scalars cannot fail to marshal; guard anyway.
		return http.StatusInternalServerError, []byte(`{"error":"internal error"}`)
	}
	return status, body
}
