package service

import (
	"crypto/sha512"
	"encoding/hex"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

// ChargeRequest 发起支付所需信息
type ChargeRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	ItemID   string
	ItemName string
	Email    string
	FullName string
}

type ChargeResult struct {
	Token       string
	RedirectURL string
}

type PaymentGateway interface {
	CreateTransaction(req ChargeRequest) (*ChargeResult, error)
	// VerifySignature 校验异步通知签名
	VerifySignature(orderID, statusCode, grossAmount, signature string) bool
}

// MidtransGateway Midtrans Snap 支付
type MidtransGateway struct {
	client    snap.Client
	serverKey string
}

func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	g := &MidtransGateway{serverKey: serverKey}
	if production {
		g.client.New(serverKey, midtrans.Production)
	} else {
		g.client.New(serverKey, midtrans.Sandbox)
	}
	return g
}

func (g *MidtransGateway) CreateTransaction(req ChargeRequest) (*ChargeResult, error) {
	// Midtrans 只接受整数金额
	amount := req.Amount.Round(0).IntPart()
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.FullName,
			Email: req.Email,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.ItemID,
				Price: amount,
				Qty:   1,
				Name:  truncate(req.ItemName, 50),
			},
		},
	}

	resp, err := g.client.CreateTransaction(snapReq)
	if err != nil {
		return nil, err
	}
	return &ChargeResult{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (g *MidtransGateway) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return signature != "" && midtransSignature(orderID, statusCode, grossAmount, g.serverKey) == signature
}

// midtransSignature = sha512(order_id + status_code + gross_amount + server_key)
func midtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
