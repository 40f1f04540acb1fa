package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mstgnz/telepay/infra/config"
	"github.com/mstgnz/telepay/infra/response"
	"github.com/mstgnz/telepay/signer"
)

// DebugHandler exposes the signing routine for troubleshooting integrations.
// It is mounted on the debug listener only.
type DebugHandler struct {
	signer *signer.Signer
	cfg    *config.AppConfig
}

// NewDebugHandler creates a debug handler. s may be nil when no key is configured.
func NewDebugHandler(s *signer.Signer, cfg *config.AppConfig) *DebugHandler {
	return &DebugHandler{signer: s, cfg: cfg}
}

type signRequest struct {
	Params signer.Params `json:"params"`
}

type signResponse struct {
	Canonical string `json:"canonical"`
	Sign      string `json:"sign"`
	SignType  string `json:"sign_type"`
}

type verifyRequest struct {
	Params    signer.Params `json:"params"`
	Sign      string        `json:"sign"`
	PublicKey string        `json:"public_key,omitempty"`
}

type verifyResponse struct {
	Canonical string `json:"canonical"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
}

func decodeParams(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// Sign canonicalizes and signs the posted parameters with the configured key
func (h *DebugHandler) Sign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := decodeParams(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	sig, err := h.signer.Sign(req.Params)
	if err != nil {
		writeError(w, r, "Failed to sign parameters", err)
		return
	}

	response.Success(w, http.StatusOK, "Parameters signed", signResponse{
		Canonical: signer.Canonicalize(req.Params),
		Sign:      sig,
		SignType:  signer.SignType,
	})
}

// Verify checks a signature against the posted parameters.
// Without public_key the configured key's public half is used.
func (h *DebugHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeParams(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if req.Sign == "" {
		response.Error(w, http.StatusBadRequest, "Validation error", errors.New("sign is required"))
		return
	}

	publicKey := req.PublicKey
	if publicKey == "" {
		pub, err := h.signer.PublicKeyPEM()
		if err != nil {
			writeError(w, r, "No public key available", err)
			return
		}
		publicKey = pub
	}

	resp := verifyResponse{Canonical: signer.Canonicalize(req.Params), Valid: true}
	if err := signer.Verify(req.Params, req.Sign, publicKey); err != nil {
		resp.Valid = false
		resp.Reason = err.Error()
	}

	response.Success(w, http.StatusOK, "Signature checked", resp)
}

// Config returns the running configuration with secrets masked
func (h *DebugHandler) Config(w http.ResponseWriter, r *http.Request) {
	if h.cfg == nil {
		response.Error(w, http.StatusServiceUnavailable, "Configuration not available", nil)
		return
	}
	response.Success(w, http.StatusOK, "Configuration", h.cfg.Redacted())
}
