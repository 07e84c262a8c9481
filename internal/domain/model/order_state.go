package model

import (
	"errors"
	"time"
)

var (
	// 状態遷移表にない遷移
	ErrInvalidTransition = errors.New("invalid transition")
	// 決済済み・失効済みなど、もう決済結果を受け付けない
	ErrPaymentClosed = errors.New("payment already closed")
)

// 管理者が指定できる遷移。pending→processingは決済(webhook)でしか起きない
var adminTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// 決済できるか（決済待ちかつキャンセルされていない）
func (o Order) CanPay() bool {
	return o.PaymentStatus == PaymentStatusPending && o.Status == OrderStatusPending
}

// キャンセルできるか（pendingかつ未決済）
func (o Order) CanCancel() bool {
	return o.Status == OrderStatusPending && o.PaymentStatus != PaymentStatusPaid
}

// 受け取り完了にできるか（発送済みかつ決済済み）
func (o Order) CanMarkReceived() bool {
	return o.Status == OrderStatusShipped && o.PaymentStatus == PaymentStatusPaid
}

// 管理者のステータス変更を検証する。同じステータスは呼び出し側でno-op扱い
func (o Order) CheckAdminTransition(next OrderStatus) error {
	if !next.Valid() {
		return ErrInvalidTransition
	}
	allowed := false
	for _, s := range adminTransitions[o.Status] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrInvalidTransition
	}

	switch next {
	case OrderStatusCancelled:
		if !o.CanCancel() {
			return ErrInvalidTransition
		}
	case OrderStatusShipped:
		if o.PaymentStatus != PaymentStatusPaid {
			return ErrInvalidTransition
		}
	}
	return nil
}

// 注文をキャンセル状態にする
func (o *Order) Cancel(now time.Time) error {
	if !o.CanCancel() {
		return ErrInvalidTransition
	}
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.UpdatedAt = now
	return nil
}

// 決済結果を反映する。変化がなければchanged=false（同じ通知の二重適用は無害）
func (o *Order) ApplyPayment(result PaymentStatus, now time.Time) (changed bool, err error) {
	if !result.Valid() {
		return false, ErrInvalidTransition
	}
	if result == PaymentStatusPending {
		return false, nil
	}
	if o.PaymentStatus == result {
		return false, nil
	}
	if o.PaymentStatus.Terminal() {
		return false, ErrPaymentClosed
	}

	switch result {
	case PaymentStatusPaid:
		//キャンセル後に入金が来た場合は受け付けない（返金は運用で対応）
		if o.Status != OrderStatusPending {
			return false, ErrInvalidTransition
		}
		o.PaymentStatus = PaymentStatusPaid
		o.Status = OrderStatusProcessing
		o.PaidAt = &now
	case PaymentStatusFailed, PaymentStatusExpired:
		o.PaymentStatus = result
	}
	o.UpdatedAt = now
	return true, nil
}
