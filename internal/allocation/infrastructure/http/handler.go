package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/application"
	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/domain"
)

type Handler struct {
	log    *slog.Logger
	bus    *application.MessageBus
	newUoW application.UnitOfWorkFactory
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, bus *application.MessageBus, newUoW application.UnitOfWorkFactory) *Handler {
	return &Handler{
		log:    log,
		bus:    bus,
		newUoW: newUoW,
		tracer: otel.Tracer("allocation-http"),
	}
}

type addBatchReq struct {
	Ref string  `json:"ref"`
	SKU string  `json:"sku"`
	Qty int     `json:"qty"`
	ETA *string `json:"eta"`
}

type allocateReq struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/add_batch", h.addBatch)
	r.Post("/allocate", h.allocate)

	return r
}

func (h *Handler) addBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddBatch")
	defer span.End()

	var req addBatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var eta *time.Time
	if req.ETA != nil {
		parsed, err := time.Parse("2006-01-02", *req.ETA)
		if err != nil {
			http.Error(w, "invalid eta", http.StatusBadRequest)
			return
		}
		eta = &parsed
	}

	event := domain.BatchCreated{Ref: req.Ref, SKU: req.SKU, Qty: req.Qty, ETA: eta}
	if _, err := h.bus.Handle(ctx, event, h.newUoW()); err != nil {
		h.log.Error("add batch failed", "ref", req.Ref, "sku", req.SKU, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Allocate")
	defer span.End()

	var req allocateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	event := domain.AllocationRequired{OrderID: req.OrderID, SKU: req.SKU, Qty: req.Qty}
	results, err := h.bus.Handle(ctx, event, h.newUoW())
	if err != nil {
		var oos domain.OutOfStockError
		var badSKU domain.InvalidSKUError
		if errors.As(err, &oos) || errors.As(err, &badSKU) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
			return
		}
		h.log.Error("allocate failed", "order_id", req.OrderID, "sku", req.SKU, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"batchref": results[0]})
}
