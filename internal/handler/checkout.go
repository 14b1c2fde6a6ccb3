package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/go-storefront-api/internal/dto"
	"github.com/flicky/go-storefront-api/internal/middleware"
	"github.com/flicky/go-storefront-api/internal/service"
)

type CheckoutHandler struct {
	checkoutService *service.CheckoutService
}

func NewCheckoutHandler(checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

func (h *CheckoutHandler) CreatePaymentIntent(c *gin.Context) {
	pi, err := h.checkoutService.CreatePaymentIntent(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PaymentIntentResponse{
		ClientSecret:    pi.ClientSecret,
		OrderID:         pi.OrderID,
		PaymentIntentID: pi.PaymentIntentID,
		Amount:          pi.Amount,
		Currency:        pi.Currency,
	})
}

func (h *CheckoutHandler) MarkPaid(c *gin.Context) {
	var req dto.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	order, err := h.checkoutService.MarkPaid(c.Request.Context(), middleware.CurrentIdentity(c), req.OrderID, req.PaymentIntentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}
