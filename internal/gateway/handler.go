package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

type Handler struct {
	ordersProxy    *ServiceProxy
	inventoryProxy *ServiceProxy
	dedup          *Deduplicator
	logger         *slog.Logger
}

func NewHandler(ordersProxy, inventoryProxy *ServiceProxy, dedup *Deduplicator, logger *slog.Logger) *Handler {
	return &Handler{
		ordersProxy:    ordersProxy,
		inventoryProxy: inventoryProxy,
		dedup:          dedup,
		logger:         logger,
	}
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		h.dedupedRequest(w, r, h.ordersProxy, r.URL.Path)
		return
	}
	h.proxyRequest(w, r, h.ordersProxy, r.URL.Path)
}

func (h *Handler) HandleInventory(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/inventory")
	h.proxyRequest(w, r, h.inventoryProxy, path)
}

// dedupedRequest forwards through the deduplicator so that double-submits
// of the same body produce one upstream request, with every submitter
// receiving the same response.
func (h *Handler) dedupedRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	key := RequestKey(r.Method, path, body)
	contentType := r.Header.Get("Content-Type")

	// The flight is shared by every collapsed caller, so it must not be
	// cancelled when the submitter that started it disconnects.
	flightCtx := context.WithoutCancel(r.Context())

	captured, shared, err := h.dedup.Do(key, func() (CapturedResponse, error) {
		resp, err := proxy.Forward(flightCtx, r.Method, path, contentType, bytes.NewReader(body))
		if err != nil {
			return CapturedResponse{}, err
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return CapturedResponse{}, err
		}

		return CapturedResponse{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        respBody,
		}, nil
	})
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}

	if captured.ContentType != "" {
		w.Header().Set("Content-Type", captured.ContentType)
	}
	w.WriteHeader(captured.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path,
		"status", captured.StatusCode, "deduplicated", shared)

	if _, err := w.Write(captured.Body); err != nil {
		h.logger.Error("failed to write response body", "error", err)
	}
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.Forward(r.Context(), r.Method, path, r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
