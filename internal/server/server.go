// Package server exposes the bill and settlement operations over HTTP. The
// layer is deliberately thin: it translates JSON requests into service calls
// and service errors into status codes.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nack098/adasplit/internal/bill"
	"github.com/nack098/adasplit/internal/cardano"
	"github.com/nack098/adasplit/pkg/qr"
)

// Server is the HTTP surface over the settlement service.
type Server struct {
	svc       *bill.Service
	publicURL string
	router    chi.Router
}

// New builds the router. publicURL is the externally reachable base used in
// payment-link QR codes.
func New(svc *bill.Service, publicURL string) *Server {
	s := &Server{
		svc:       svc,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}

	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Route("/bills", func(r chi.Router) {
		r.Post("/create", s.handleCreateBill)
		r.Post("/add-participant", s.handleAddParticipant)
		r.Get("/by-creator/{address}", s.handleBillsByCreator)
		r.Get("/by-participant/{address}", s.handleBillsByParticipant)
		r.Get("/by-status/{status}", s.handleBillsByStatus)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetBill)
			r.Get("/progress", s.handleBillProgress)
			r.Get("/qr", s.handleBillQR)
			r.Post("/payment", s.handleBuildPayment)
			r.Post("/settle", s.handleBuildSettlement)
			r.Post("/settle/confirm", s.handleConfirmSettlement)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req bill.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	b, err := s.svc.CreateBill(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Bill created successfully",
		"bill":    b,
	})
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.GetBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Bill retrieved successfully",
		"bill":    b,
	})
}

func (s *Server) handleBillsByCreator(w http.ResponseWriter, r *http.Request) {
	bills, err := s.svc.BillsByCreator(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeBills(w, bills)
}

func (s *Server) handleBillsByParticipant(w http.ResponseWriter, r *http.Request) {
	bills, err := s.svc.BillsByParticipant(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeBills(w, bills)
}

func (s *Server) handleBillsByStatus(w http.ResponseWriter, r *http.Request) {
	status := bill.Status(chi.URLParam(r, "status"))
	switch status {
	case bill.StatusPending, bill.StatusPartial, bill.StatusComplete, bill.StatusSettled, bill.StatusExpired:
	default:
		writeError(w, fmt.Errorf("%w: unknown status %q", bill.ErrValidation, status))
		return
	}
	bills, err := s.svc.BillsByStatus(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeBills(w, bills)
}

type addParticipantRequest struct {
	BillID             string  `json:"billId"`
	ParticipantAddress string  `json:"participantAddress"`
	AmountPaid         float64 `json:"amountPaid"`
	PaymentTxHash      string  `json:"paymentTxHash"`
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req addParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	b, err := s.svc.RecordParticipant(r.Context(), req.BillID, req.ParticipantAddress, req.AmountPaid, req.PaymentTxHash)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Participant added to bill successfully",
		"bill":    b,
	})
}

func (s *Server) handleBillProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.svc.BillProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleBillQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.svc.GetBill(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := qr.RenderPNG(w, s.publicURL+"/payment/"+id); err != nil {
		slog.Error("Failed to render QR code", "bill_id", id, "error", err)
	}
}

type buildPaymentRequest struct {
	ParticipantAddress string `json:"participantAddress"`
}

func (s *Server) handleBuildPayment(w http.ResponseWriter, r *http.Request) {
	var req buildPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tx, err := s.svc.BuildPaymentTx(r.Context(), chi.URLParam(r, "id"), req.ParticipantAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

type settleRequest struct {
	CreatorAddress string `json:"creatorAddress"`
}

func (s *Server) handleBuildSettlement(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tx, err := s.svc.BuildSettlementTx(r.Context(), chi.URLParam(r, "id"), req.CreatorAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

type confirmSettlementRequest struct {
	CreatorAddress string `json:"creatorAddress"`
	TxHash         string `json:"txHash"`
}

func (s *Server) handleConfirmSettlement(w http.ResponseWriter, r *http.Request) {
	var req confirmSettlementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.ConfirmSettlement(r.Context(), chi.URLParam(r, "id"), req.CreatorAddress, req.TxHash); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Settlement transaction recorded",
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", bill.ErrValidation, err)
	}
	return nil
}

func writeBills(w http.ResponseWriter, bills []bill.Bill) {
	if bills == nil {
		bills = []bill.Bill{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Bills retrieved successfully",
		"bills":   bills,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bill.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, bill.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bill.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, bill.ErrDuplicatePayment),
		errors.Is(err, bill.ErrBillComplete),
		errors.Is(err, bill.ErrNotSettleable):
		return http.StatusConflict
	case errors.Is(err, cardano.ErrInsufficientFunds),
		errors.Is(err, cardano.ErrInsufficientCollateral),
		errors.Is(err, cardano.ErrNoFundsForBill),
		errors.Is(err, cardano.ErrMalformedDatum),
		errors.Is(err, cardano.ErrInvalidAddress):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cardano.ErrLedgerTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger logs every request with its duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
