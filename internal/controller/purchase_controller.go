package controller

import (
	"exam_practice_backend/internal/service"
	"exam_practice_backend/internal/util"
	"exam_practice_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PurchaseController struct {
	PurchaseService *service.PurchaseService
}

func NewPurchaseController(purchaseService *service.PurchaseService) *PurchaseController {
	return &PurchaseController{PurchaseService: purchaseService}
}

// Checkout godoc
// @Summary 购买试卷
// @Description 免费试卷直接开通；付费试卷返回 Midtrans Snap 令牌与跳转地址，重复调用返回同一订单
// @Tags 购买
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "试卷ID"
// @Success 200 {object} util.Response{data=model.UserTestPurchase} "成功"
// @Failure 404 {object} util.Response "试卷不存在"
// @Failure 503 {object} util.Response "支付暂不可用"
// @Router /api/tests/{id}/purchase [post]
func (c *PurchaseController) Checkout(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	purchase, err := c.PurchaseService.Checkout(claims.UserID, ctx.Param("id"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, purchase)
}

// ListMine godoc
// @Summary 我的购买记录
// @Tags 购买
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.UserTestPurchase} "成功"
// @Router /api/purchases [get]
func (c *PurchaseController) ListMine(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	purchases, err := c.PurchaseService.ListMine(claims.UserID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, purchases)
}

// MidtransNotification godoc
// @Summary Midtrans 支付通知
// @Description 校验签名后更新订单状态
// @Tags 购买
// @Accept  json
// @Produce  json
// @Param   body body service.MidtransNotification true "通知内容"
// @Success 200 {object} util.Response "已处理"
// @Failure 403 {object} util.Response "签名错误"
// @Failure 404 {object} util.Response "订单不存在"
// @Router /api/payments/midtrans/notification [post]
func (c *PurchaseController) MidtransNotification(ctx *gin.Context) {
	var n service.MidtransNotification
	if err := ctx.ShouldBindJSON(&n); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	purchase, err := c.PurchaseService.HandleNotification(n)
	if err != nil {
		logger.Log.Warn("Midtrans notification rejected",
			zap.String("order_id", n.OrderID),
			zap.String("transaction_status", n.TransactionStatus),
			zap.Error(err),
		)
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"orderId": purchase.OrderID, "status": purchase.Status})
}
