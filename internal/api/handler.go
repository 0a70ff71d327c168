// internal/api/handler.go
package api

import (
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/custody"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
	"github.com/rovshanmuradov/solana-checkout/internal/relay"
	"github.com/rovshanmuradov/solana-checkout/internal/storage"
	"github.com/rovshanmuradov/solana-checkout/internal/storage/models"
)

// Handler serves the relay endpoints. It keeps no per-request state between
// calls; address pairings live in the registry store.
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{deps: deps, logger: logger}
}

// GetQuote handles POST /api/get-quote.
func (h *Handler) GetQuote(c *gin.Context) {
	c.Set(quoteEnvelopeKey, true)
	var req relay.GetQuoteRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.InputMint == "" || req.OutputMint == "" || req.Amount == 0 {
		respondError(c, apperr.Validation("get-quote", "Missing inputMint, outputMint, or amount"))
		return
	}
	input, output, ok := parseMints(c, "get-quote", req.InputMint, req.OutputMint)
	if !ok {
		return
	}

	q, err := h.deps.Quotes.Quote(c.Request.Context(), quote.Request{
		InputMint:  input,
		OutputMint: output,
		Amount:     uint64(req.Amount),
	})
	if err != nil {
		h.logger.Warn("Quote failed", zap.Error(err))
		respondError(c, err)
		return
	}
	if q.Route == nil {
		respondError(c, apperr.Upstream("get-quote", "quote service unavailable", quote.ErrInvalidQuote))
		return
	}
	c.JSON(http.StatusOK, relay.GetQuoteResponse{Success: true, QuoteData: q.Route.Raw()})
}

// CreateTransaction handles POST /api/create-transaction.
func (h *Handler) CreateTransaction(c *gin.Context) {
	const op = "create-transaction"
	var req relay.CreateTransactionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.InputMint == "" || req.OutputMint == "" || req.Amount == 0 || req.UserPublicKey == "" || req.MerchantPublicKey == "" {
		respondError(c, apperr.Validation(op, "Missing parameters"))
		return
	}
	input, output, ok := parseMints(c, op, req.InputMint, req.OutputMint)
	if !ok {
		return
	}
	user, err := solana.PublicKeyFromBase58(req.UserPublicKey)
	if err != nil {
		respondError(c, apperr.Validation(op, "Invalid userPublicKey"))
		return
	}
	merchant, err := solana.PublicKeyFromBase58(req.MerchantPublicKey)
	if err != nil {
		respondError(c, apperr.Validation(op, "Invalid merchantPublicKey"))
		return
	}

	intent, err := relay.NewSwapIntent(input, uint64(req.Amount), user, merchant)
	if err != nil {
		respondError(c, err)
		return
	}
	if !output.Equals(intent.OutputMint) {
		respondError(c, apperr.Validation(op, "Unsupported outputMint"))
		return
	}
	if !h.matchesRegistration(c, op, user, merchant) {
		return
	}

	env, err := h.deps.Builder.Build(c.Request.Context(), intent)
	if err != nil {
		h.logger.Warn("Transaction build failed", zap.Error(err))
		respondError(c, err)
		return
	}
	h.logger.Info("Transaction created",
		zap.String("user", user.String()),
		zap.String("merchant", merchant.String()),
		zap.String("merchant_token_account", intent.MerchantTokenAccount.String()),
		zap.Uint64("amount", intent.Amount))

	c.JSON(http.StatusOK, relay.CreateTransactionResponse{
		SerializedTransaction: env.Base64(),
		Message:               "Transaction created successfully",
		SwapInfo:              env.SwapInfo,
	})
}

// SetAddresses handles POST /api/set-addresses.
func (h *Handler) SetAddresses(c *gin.Context) {
	const op = "set-addresses"
	var req relay.SetAddressesRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.SenderPubKey == "" || req.MerchantPubKey == "" {
		respondError(c, apperr.Validation(op, "Missing senderPubKey or merchantPubKey"))
		return
	}
	sender, err := solana.PublicKeyFromBase58(req.SenderPubKey)
	if err != nil {
		respondError(c, apperr.Validation(op, "Invalid senderPubKey"))
		return
	}
	merchant, err := solana.PublicKeyFromBase58(req.MerchantPubKey)
	if err != nil {
		respondError(c, apperr.Validation(op, "Invalid merchantPubKey"))
		return
	}

	reg, err := h.deps.Registry.Register(c.Request.Context(), sender, merchant)
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindInternal, op, "Failed to register addresses", err))
		return
	}
	h.logger.Info("Addresses registered",
		zap.String("sender", reg.Sender),
		zap.String("merchant", reg.Merchant),
		zap.String("merchant_token_account", reg.MerchantTokenAccount))
	c.JSON(http.StatusOK, relay.SetAddressesResponse{Success: true, MerchantTokenAccount: reg.MerchantTokenAccount})
}

// ConfirmTransaction handles POST /api/confirm-transaction. The signature is
// recorded in the ledger with whatever status the chain reports right now.
func (h *Handler) ConfirmTransaction(c *gin.Context) {
	const op = "confirm-transaction"
	var req relay.ConfirmTransactionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Signature == "" {
		respondError(c, apperr.Validation(op, "Missing transaction signature"))
		return
	}
	sig, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		respondError(c, apperr.Validation(op, "Invalid transaction signature"))
		return
	}

	record := &models.Transaction{Signature: sig.String(), Status: models.StatusPending}
	status, err := h.deps.Chain.GetSignatureStatus(c.Request.Context(), sig)
	switch {
	case err != nil:
		h.logger.Warn("Status lookup failed, recording as pending",
			zap.String("signature", record.Signature), zap.Error(err))
	case status.Found:
		record.Slot = status.Slot
		record.ConfirmationStatus = string(status.ConfirmationStatus)
		if status.Err != nil {
			record.Status = models.StatusFailed
			record.ErrorMessage = apperr.OnChainJSON(op, status.Err).Payload
		} else if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			record.Status = models.StatusConfirmed
		}
	}

	if err := h.deps.Ledger.SaveTransaction(c.Request.Context(), record); err != nil {
		respondError(c, apperr.Wrap(apperr.KindInternal, op, "Failed to confirm transaction", err))
		return
	}
	h.logger.Info("Transaction recorded",
		zap.String("signature", record.Signature),
		zap.String("status", record.Status))
	c.JSON(http.StatusOK, relay.ConfirmTransactionResponse{
		Success: true,
		Message: "Transaction recorded successfully",
		Status:  record.Status,
	})
}

// SendTransaction handles POST /api/send-transaction in custodial mode.
func (h *Handler) SendTransaction(c *gin.Context) {
	const op = "send-transaction"
	var req relay.SendTransactionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.InputMint == "" || req.OutputMint == "" || req.Amount == 0 {
		respondError(c, apperr.Validation(op, "Missing fields"))
		return
	}
	input, output, ok := parseMints(c, op, req.InputMint, req.OutputMint)
	if !ok {
		return
	}
	order := custody.Order{InputMint: input, OutputMint: output, Amount: uint64(req.Amount)}
	if req.MerchantPublicKey != "" {
		merchant, err := solana.PublicKeyFromBase58(req.MerchantPublicKey)
		if err != nil {
			respondError(c, apperr.Validation(op, "Invalid merchantPublicKey"))
			return
		}
		order.Merchant = merchant
	}

	rec, err := h.deps.Custody.Send(c.Request.Context(), order)
	if err != nil {
		h.logger.Error("Custodial send failed", zap.Error(err))
		resp := relay.SendTransactionResponse{Error: apperr.UserMessage(err)}
		if rec != nil {
			resp.Signature = rec.Signature.String()
			resp.Link = rec.Link
		}
		c.JSON(apperr.HTTPStatus(err), resp)
		return
	}
	c.JSON(http.StatusOK, relay.SendTransactionResponse{
		Success:   true,
		Signature: rec.Signature.String(),
		Link:      rec.Link,
	})
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func parseMints(c *gin.Context, op, inputMint, outputMint string) (solana.PublicKey, solana.PublicKey, bool) {
	input, err := solana.PublicKeyFromBase58(inputMint)
	if err != nil {
		respondError(c, apperr.Validation(op, "Invalid inputMint"))
		return solana.PublicKey{}, solana.PublicKey{}, false
	}
	output, err := solana.PublicKeyFromBase58(outputMint)
	if err != nil {
		respondError(c, apperr.Validation(op, "Invalid outputMint"))
		return solana.PublicKey{}, solana.PublicKey{}, false
	}
	return input, output, true
}

// matchesRegistration rejects a build whose merchant differs from the one the
// sender registered through set-addresses. Without a registration the request
// is served as is.
func (h *Handler) matchesRegistration(c *gin.Context, op string, user, merchant solana.PublicKey) bool {
	reg, err := h.deps.Registry.Lookup(c.Request.Context(), user)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.logger.Debug("No registered addresses for sender", zap.String("user", user.String()))
		return true
	case err != nil:
		respondError(c, apperr.Wrap(apperr.KindInternal, op, "Failed to read registered addresses", err))
		return false
	case reg.Merchant != merchant.String():
		h.logger.Warn("Merchant differs from registration",
			zap.String("user", user.String()),
			zap.String("registered", reg.Merchant),
			zap.String("requested", merchant.String()))
		respondError(c, apperr.Validation(op, "merchantPublicKey does not match registered addresses"))
		return false
	}
	return true
}

func respondError(c *gin.Context, err error) {
	writeError(c, apperr.HTTPStatus(err), apperr.UserMessage(err))
}

// quoteEnvelopeKey marks requests whose errors keep the get-quote envelope
// ({"success":false,"error":...}) instead of the bare error body.
const quoteEnvelopeKey = "api.quoteEnvelope"

func writeError(c *gin.Context, status int, message string) {
	if c.GetBool(quoteEnvelopeKey) {
		c.JSON(status, relay.GetQuoteResponse{Success: false, Error: message})
		return
	}
	c.JSON(status, relay.ErrorResponse{Error: message})
}
