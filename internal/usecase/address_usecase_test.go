package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAddress(label string) usecase.AddressInput {
	return usecase.AddressInput{
		Label:         label,
		RecipientName: "Siti",
		Phone:         "0812",
		Street:        "Jl. Sudirman 5",
		City:          "Bandung",
		Province:      "Jawa Barat",
		PostalCode:    "40111",
	}
}

func TestAddressUsecase_FirstIsDefaultAndSetDefault(t *testing.T) {
	f := newFixture(t)
	uc := usecase.NewAddressUsecase(memAddresses{f.store})
	ctx := context.Background()
	userID := f.admin.ID // 住所なしのユーザー

	home, err := uc.Create(ctx, userID, validAddress("home"))
	require.NoError(t, err)
	assert.True(t, home.IsDefault)

	office, err := uc.Create(ctx, userID, validAddress("office"))
	require.NoError(t, err)
	assert.False(t, office.IsDefault)

	require.NoError(t, uc.SetDefault(ctx, userID, office.ID))
	list, err := uc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, office.ID, list[0].ID)
	defaults := 0
	for _, a := range list {
		if a.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)

	//デフォルトを消すと残りが繰り上がる
	require.NoError(t, uc.Delete(ctx, userID, office.ID))
	list, err = uc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsDefault)
}

func TestAddressUsecase_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	uc := usecase.NewAddressUsecase(memAddresses{f.store})
	ctx := context.Background()

	_, err := uc.Update(ctx, f.admin.ID, f.address.ID, validAddress("x"))
	assertHTTPError(t, err, http.StatusNotFound, "")
	assertHTTPError(t, uc.Delete(ctx, f.admin.ID, f.address.ID), http.StatusNotFound, "")
	assertHTTPError(t, uc.SetDefault(ctx, f.admin.ID, f.address.ID), http.StatusNotFound, "")

	updated, err := uc.Update(ctx, f.customer.ID, f.address.ID, validAddress("kantor"))
	require.NoError(t, err)
	assert.Equal(t, "kantor", updated.Label)
	assert.Equal(t, "Bandung", updated.City)
}

func TestAddressUsecase_MissingFields(t *testing.T) {
	f := newFixture(t)
	uc := usecase.NewAddressUsecase(memAddresses{f.store})

	in := validAddress("home")
	in.PostalCode = "  "
	_, err := uc.Create(context.Background(), f.customer.ID, in)
	assertHTTPError(t, err, http.StatusBadRequest, "missing address fields")
}

// Test: デフォルトを消すと残りのうち最古の住所が繰り上がる
func TestAddressUsecase_DeleteDefaultPromotesOldest(t *testing.T) {
	f := newFixture(t)
	uc := usecase.NewAddressUsecase(memAddresses{f.store})
	ctx := context.Background()
	userID := f.admin.ID

	home, err := uc.Create(ctx, userID, validAddress("home"))
	require.NoError(t, err)
	office, err := uc.Create(ctx, userID, validAddress("office"))
	require.NoError(t, err)
	shop, err := uc.Create(ctx, userID, validAddress("shop"))
	require.NoError(t, err)
	require.NoError(t, uc.SetDefault(ctx, userID, shop.ID))

	require.NoError(t, uc.Delete(ctx, userID, shop.ID))
	list, err := uc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, home.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.Equal(t, office.ID, list[1].ID)
	assert.False(t, list[1].IsDefault)
}

// 件数を古い値で返す（同時に最初の住所を作った状態）
type staleCountAddresses struct{ memAddresses }

func (r staleCountAddresses) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	return 0, nil
}

// Test: 同時作成でデフォルト制約に負けた側は非デフォルトで作られる
func TestAddressUsecase_ConcurrentFirstCreateKeepsOneDefault(t *testing.T) {
	f := newFixture(t)
	uc := usecase.NewAddressUsecase(staleCountAddresses{memAddresses{f.store}})
	ctx := context.Background()

	second, err := uc.Create(ctx, f.customer.ID, validAddress("office"))
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	defaults := 0
	for _, a := range f.store.addresses {
		if a.UserID == f.customer.ID && a.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}
