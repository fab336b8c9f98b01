package service

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"

	"github.com/mmynk/tabsplit/internal/apperrors"
	"github.com/mmynk/tabsplit/internal/engine"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/receipt"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: connect.CodeOf(err).String()})
}

// httpStatus maps an RPC error code to the matching HTTP status.
func httpStatus(code connect.Code) int {
	switch code {
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodeUnauthenticated:
		return http.StatusUnauthorized
	case connect.CodePermissionDenied:
		return http.StatusForbidden
	case connect.CodeNotFound:
		return http.StatusNotFound
	case connect.CodeResourceExhausted:
		return http.StatusRequestEntityTooLarge
	case connect.CodeUnavailable:
		return http.StatusServiceUnavailable
	case connect.CodeDeadlineExceeded, connect.CodeCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func fail(w http.ResponseWriter, err error) {
	cerr := apperrors.ToConnect(err)
	writeError(w, httpStatus(cerr.Code()), cerr)
}

// UploadReceipt handles POST /api/sessions/{sessionID}/receipt. The
// multipart field "image" is run through the recognizer and the detected
// lines are added to the session. The detected items are returned even when
// saving them fails, with saved=false and the error.
func (s *SessionService) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx := r.Context()

	claims, err := requireMember(ctx, sessionID)
	if err != nil {
		fail(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxReceiptBytes)
	if err := r.ParseMultipartForm(s.maxReceiptBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			fail(w, connect.NewError(connect.CodeResourceExhausted, errors.New("receipt image is too large")))
			return
		}
		fail(w, apperrors.Validation("image", "expected a multipart form"))
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		fail(w, apperrors.Validation("image", "no image provided"))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		fail(w, apperrors.Validation("image", "could not read upload"))
		return
	}

	slog.Info("Receipt uploaded",
		"session_id", sessionID,
		"participant_id", claims.ParticipantID,
		"bytes", len(image),
	)

	detected, err := s.recognizer.Recognize(ctx, image)
	if err != nil {
		slog.Error("Receipt recognition failed", "session_id", sessionID, "error", err)
		fail(w, err)
		return
	}

	resp := ReceiptResponse{Items: detected}
	var saved []models.Item
	_, err = s.mutate(ctx, sessionID, "add_receipt_items", claims, func(e *engine.Engine) ([]models.Change, error) {
		items, changes, err := e.AddItems(receipt.ToItemInputs(detected))
		saved = items
		return changes, err
	})
	switch {
	case err == nil:
		resp.Saved = true
		resp.SavedItems = saved
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrPermission):
		fail(w, err)
		return
	default:
		slog.Error("Failed to save receipt items",
			"session_id", sessionID,
			"detected", len(detected),
			"error", err,
		)
		resp.Error = err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}
