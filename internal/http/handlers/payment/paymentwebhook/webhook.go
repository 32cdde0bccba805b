// Package paymentwebhook реализует HTTP-обработчик событий платёжного
// провайдера. Подпись запроса проверяется по HMAC-SHA256.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/access-reconciler/internal/lib/sl"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

// Service описывает интерфейс обработки платёжного события.
type Service interface {
	Process(ctx context.Context, event models.PaymentEvent) error
}

// Handler принимает и проверяет вебхуки платёжного провайдера.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
	validate      *validator.Validate
}

// New создает новый Handler с переданными логгером, сервисом и секретом подписи.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
		validate:      validator.New(),
	}
}

// verifySignature проверяет подпись вебхука из заголовка X-Api-Signature.
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP godoc
// @Summary Вебхук платёжного провайдера
// @Description Принимает событие оплаты, проверяет подпись и зачисляет платёж.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param X-Api-Signature header string true "HMAC-SHA256 подпись тела"
// @Success 200 "Событие принято"
// @Failure 400 "Некорректное тело"
// @Failure 401 "Неверная подпись"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var event models.PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(event); err != nil {
		log.Error("webhook payload validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.service.Process(r.Context(), event); err != nil {
		log.Error("failed to process payment event", "txn_id", event.TxnID, sl.Err(err))
		// Провайдер повторит доставку, дедупликация по txn_id защищает
		// от двойного зачисления.
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("payment event processed", "txn_id", event.TxnID, sl.Member(event.MemberID))
	w.WriteHeader(http.StatusOK)
}
