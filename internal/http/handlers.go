package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"conti/internal/core"
	"conti/internal/export"
	"conti/internal/identity"
	"conti/internal/middleware/ratelimit"
	"conti/internal/middleware/trace"
)

type handler struct {
	accounts Accounts
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter
}

// owner returns the authenticated owner id. Routes behind AuthMiddleware
// always carry one.
func owner(c *gin.Context) string {
	id, _ := identity.OwnerID(c.Request.Context())
	return id
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.accounts.Ready(ctx); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *handler) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	a, err := h.accounts.Create(c.Request.Context(), owner(c), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *handler) listAccounts(c *gin.Context) {
	opts, err := parseListOptions(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.accounts.List(c.Request.Context(), owner(c), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handler) globalInfo(c *gin.Context) {
	sum, err := h.accounts.GlobalInfo(c.Request.Context(), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *handler) getAccount(c *gin.Context) {
	a, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *handler) updateAccount(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		writeError(c, &core.ValidationError{Fields: map[string]string{"body": "unreadable"}})
		return
	}
	patch, err := core.ParseAccountPatch(raw)
	if err != nil {
		writeError(c, err)
		return
	}
	a, err := h.accounts.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *handler) deleteAccount(c *gin.Context) {
	a, err := h.accounts.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *handler) toggleFavorite(c *gin.Context) {
	status, err := h.accounts.ToggleFavorite(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *handler) balance(c *gin.Context) {
	bal, err := h.accounts.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": bal})
}

func (h *handler) listTransactions(c *gin.Context) {
	opts, err := parseListOptions(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.accounts.ListTransactions(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handler) createTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	tx, err := h.accounts.CreateTransaction(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (h *handler) deleteTransaction(c *gin.Context) {
	res, err := h.accounts.DeleteTransaction(c.Request.Context(), c.Param("id"), c.Param("transactionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) exportTransactions(c *gin.Context) {
	a, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteLedgerXLSX(&buf, a); err != nil {
		writeError(c, fmt.Errorf("export ledger: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.LedgerFilename(a)))
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}

func (h *handler) setCurrentBalance(c *gin.Context) {
	var req setBalanceRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	if req.Value == nil {
		writeError(c, &core.ValidationError{Fields: map[string]string{"value": "is required"}})
		return
	}
	if err := h.accounts.SetCurrentBalance(c.Request.Context(), c.Param("id"), *req.Value, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) reconcile(c *gin.Context) {
	a, err := h.accounts.ReconcileBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *handler) metrics(c *gin.Context) {
	m := h.tracer.GetMetrics()
	body := gin.H{
		"requests": gin.H{
			"total":            m.TotalRequests.Load(),
			"server_errors":    m.ServerErrors.Load(),
			"last_duration_us": m.LastDurationUs.Load(),
		},
	}
	if h.limiter != nil {
		rl := h.limiter.GetMetrics()
		body["rate_limit"] = gin.H{"rejected": rl.Rejected, "clients": rl.ClientCount}
	}
	c.JSON(http.StatusOK, body)
}
