// Package payment はゲートウェイに依存しない決済まわりの型と計算をまとめる。
package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"storefront/internal/domain/model"
)

// ゲートウェイ側に取引がまだない（未決済のまま）
var ErrTransactionNotFound = errors.New("transaction not found")

// ゲートウェイが一時的に使えない（サーキットブレーカーが開いている等）
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type Item struct {
	ID    string
	Name  string
	Price int64
	Qty   int64
}

type Customer struct {
	Name       string
	Email      string
	Phone      string
	Street     string
	City       string
	PostalCode string
}

// 決済セッション作成の入力
type CreateRequest struct {
	OrderNumber   string
	GrossAmount   int64
	Items         []Item
	Customer      Customer
	FinishURL     string
	ExpiryMinutes int
}

type Session struct {
	Token       string
	RedirectURL string
}

// 通知(webhook)とステータス照会で共通の形
type Notification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	FraudStatus       string `json:"fraud_status"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	SignatureKey      string `json:"signature_key"`
}

// MapStatusはゲートウェイのtransaction_statusを注文の決済状態に変換する。
// 知らないステータス（refundなど）はok=false
func MapStatus(transactionStatus, fraudStatus string) (model.PaymentStatus, bool) {
	switch strings.ToLower(transactionStatus) {
	case "settlement":
		return model.PaymentStatusPaid, true
	case "capture":
		//カード決済はfraud判定がacceptのときだけ確定
		switch strings.ToLower(fraudStatus) {
		case "", "accept":
			return model.PaymentStatusPaid, true
		case "deny":
			return model.PaymentStatusFailed, true
		default:
			return model.PaymentStatusPending, true
		}
	case "pending", "authorize":
		return model.PaymentStatusPending, true
	case "deny", "cancel", "failure":
		return model.PaymentStatusFailed, true
	case "expire":
		return model.PaymentStatusExpired, true
	}
	return "", false
}

// sha512(order_id + status_code + gross_amount + server_key) の16進
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func VerifySignature(n Notification, serverKey string) bool {
	if n.SignatureKey == "" || serverKey == "" {
		return false
	}
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.SignatureKey))) == 1
}

// "15000.00" のような金額文字列を最小単位の整数にする。小数部は0のみ許可
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && strings.Trim(frac, "0") != "" {
		return 0, errors.New("fractional amount")
	}
	v, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("negative amount")
	}
	return v, nil
}

// ゲートウェイへ渡す金額表記
func FormatAmount(v int64) string {
	return strconv.FormatInt(v, 10) + ".00"
}
