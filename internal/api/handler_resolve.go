package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"water-vending-backend/internal/sign"
)

// Error codes returned by the resolve endpoint. Clients branch on these, so
// they are part of the wire contract.
const (
	ErrCodeMissingParameters  = "MISSING_PARAMETERS"
	ErrCodeInvalidOrExpired   = "INVALID_OR_EXPIRED"
	ErrCodeNotFoundOrInactive = "NOT_FOUND_OR_INACTIVE"
)

// resolveResponse is the body of GET /api/qr/resolve.
type resolveResponse struct {
	OK              bool   `json:"ok"`
	MachineID       string `json:"machineId,omitempty"`
	MachineLocation string `json:"machineLocation,omitempty"`
	Error           string `json:"error,omitempty"`
}

// ResolveQR handles GET /api/qr/resolve?m=&sig=&ts=. It confirms that a
// scanned machine reference is authentic (when signed) and that the machine
// is currently able to dispense.
func (h *Handler) ResolveQR(c *gin.Context) {
	machineID := c.Query("m")
	signature := c.Query("sig")
	timestamp := c.Query("ts")

	if machineID == "" {
		c.JSON(http.StatusBadRequest, resolveResponse{OK: false, Error: ErrCodeMissingParameters})
		return
	}

	// Manual entry carries no signature; existence and status are still
	// checked below.
	if signature != "" {
		err := sign.Verify(h.cfg.QR.KioskSecret, machineID, timestamp, signature, h.cfg.QR.FreshnessWindow, time.Now())
		if err != nil {
			log.Printf("qr resolve: rejected signature for machine %s: %v", machineID, err)
			c.JSON(http.StatusOK, resolveResponse{OK: false, Error: ErrCodeInvalidOrExpired})
			return
		}
	}

	machine, err := h.store.MachineByCode(c.Request.Context(), machineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, resolveResponse{OK: false, Error: ErrCodeNotFoundOrInactive})
			return
		}
		log.Printf("qr resolve: machine lookup failed for %s: %v", machineID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve machine"})
		return
	}
	if !machine.Dispensable() {
		c.JSON(http.StatusOK, resolveResponse{OK: false, Error: ErrCodeNotFoundOrInactive})
		return
	}

	c.JSON(http.StatusOK, resolveResponse{
		OK:              true,
		MachineID:       machine.Code,
		MachineLocation: machine.Location,
	})
}
