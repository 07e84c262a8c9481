package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
)

type AddressInput struct {
	Label         string
	RecipientName string
	Phone         string
	Street        string
	City          string
	Province      string
	PostalCode    string
}

func (in AddressInput) trimmed() AddressInput {
	return AddressInput{
		Label:         strings.TrimSpace(in.Label),
		RecipientName: strings.TrimSpace(in.RecipientName),
		Phone:         strings.TrimSpace(in.Phone),
		Street:        strings.TrimSpace(in.Street),
		City:          strings.TrimSpace(in.City),
		Province:      strings.TrimSpace(in.Province),
		PostalCode:    strings.TrimSpace(in.PostalCode),
	}
}

func (in AddressInput) validate() error {
	if in.RecipientName == "" || in.Phone == "" || in.Street == "" || in.City == "" || in.Province == "" || in.PostalCode == "" {
		return NewHTTPError(http.StatusBadRequest, "missing address fields")
	}
	return nil
}

type AddressUsecase struct {
	addresses repository.AddressRepository
}

func NewAddressUsecase(addresses repository.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addresses: addresses}
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]model.Address, error) {
	if userID <= 0 {
		return nil, errUnauthorized()
	}
	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, errDB()
	}
	return list, nil
}

// 最初の住所は自動でデフォルトになる。
// 同時に最初の住所を作るとデフォルトの一意制約で片方が弾かれるので、非デフォルトで入れ直す
func (u *AddressUsecase) Create(ctx context.Context, userID int64, in AddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, errUnauthorized()
	}
	in = in.trimmed()
	if err := in.validate(); err != nil {
		return model.Address{}, err
	}

	count, err := u.addresses.CountByUserID(ctx, userID)
	if err != nil {
		return model.Address{}, errDB()
	}

	now := time.Now()
	a := model.Address{
		UserID:        userID,
		Label:         in.Label,
		RecipientName: in.RecipientName,
		Phone:         in.Phone,
		Street:        in.Street,
		City:          in.City,
		Province:      in.Province,
		PostalCode:    in.PostalCode,
		IsDefault:     count == 0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, err := u.addresses.Create(ctx, a)
	if errors.Is(err, repository.ErrDuplicate) && a.IsDefault {
		a.IsDefault = false
		created, err = u.addresses.Create(ctx, a)
	}
	if err != nil {
		return model.Address{}, errDB()
	}
	return created, nil
}

// 本人の住所だけ（他人の住所は404）
func (u *AddressUsecase) owned(ctx context.Context, userID, addressID int64) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, errUnauthorized()
	}
	if addressID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := u.addresses.FindByID(ctx, addressID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Address{}, errNotFound()
	}
	if err != nil {
		return model.Address{}, errDB()
	}
	if a.UserID != userID {
		return model.Address{}, errNotFound()
	}
	return a, nil
}

func (u *AddressUsecase) Update(ctx context.Context, userID, addressID int64, in AddressInput) (model.Address, error) {
	a, err := u.owned(ctx, userID, addressID)
	if err != nil {
		return model.Address{}, err
	}
	in = in.trimmed()
	if err := in.validate(); err != nil {
		return model.Address{}, err
	}

	a.Label = in.Label
	a.RecipientName = in.RecipientName
	a.Phone = in.Phone
	a.Street = in.Street
	a.City = in.City
	a.Province = in.Province
	a.PostalCode = in.PostalCode
	a.UpdatedAt = time.Now()

	if err := u.addresses.Update(ctx, a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Address{}, errNotFound()
		}
		return model.Address{}, errDB()
	}
	return a, nil
}

func (u *AddressUsecase) Delete(ctx context.Context, userID, addressID int64) error {
	if _, err := u.owned(ctx, userID, addressID); err != nil {
		return err
	}
	if err := u.addresses.Delete(ctx, userID, addressID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errNotFound()
		}
		return errDB()
	}
	return nil
}

func (u *AddressUsecase) SetDefault(ctx context.Context, userID, addressID int64) error {
	if _, err := u.owned(ctx, userID, addressID); err != nil {
		return err
	}
	if err := u.addresses.SetDefault(ctx, userID, addressID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errNotFound()
		}
		return errDB()
	}
	return nil
}
