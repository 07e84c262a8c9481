package usecase

import (
	"strings"

	"storefront/internal/config"
)

// 配送サービスの一覧。送料は必ずここから引く
type ShippingUsecase struct {
	couriers []config.Courier
	byCode   map[string]config.Courier
}

func NewShippingUsecase(couriers []config.Courier) *ShippingUsecase {
	byCode := make(map[string]config.Courier, len(couriers))
	for _, c := range couriers {
		byCode[c.Code] = c
	}
	return &ShippingUsecase{couriers: couriers, byCode: byCode}
}

func (u *ShippingUsecase) ListServices() []config.Courier {
	out := make([]config.Courier, len(u.couriers))
	copy(out, u.couriers)
	return out
}

func (u *ShippingUsecase) Resolve(code string) (config.Courier, bool) {
	c, ok := u.byCode[strings.TrimSpace(code)]
	return c, ok
}
