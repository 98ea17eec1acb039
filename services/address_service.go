package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ironworks/storefront-api/models"
	"gorm.io/gorm"
)

// AddressInput carries the editable fields of a delivery address
type AddressInput struct {
	Title         string `json:"title"`
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	City          string `json:"city"`
	Street        string `json:"street"`
	Building      string `json:"building"`
	Apartment     string `json:"apartment"`
	PostalCode    string `json:"postal_code"`
	IsDefault     bool   `json:"is_default"`
}

// AddressService manages users' delivery address books
type AddressService struct {
	db *gorm.DB
}

// NewAddressService creates an address service
func NewAddressService(db *gorm.DB) *AddressService {
	return &AddressService{db: db}
}

// List returns the user's active addresses with the default first
func (s *AddressService) List(ctx context.Context, userID uint) ([]models.DeliveryAddress, error) {
	var addresses []models.DeliveryAddress
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("is_default DESC, id").
		Find(&addresses).Error; err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return addresses, nil
}

// Default returns the user's default address or ErrNotFound
func (s *AddressService) Default(ctx context.Context, userID uint) (*models.DeliveryAddress, error) {
	var addr models.DeliveryAddress
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_default = ? AND is_active = ?", userID, true, true).
		First(&addr).Error; err != nil {
		return nil, notFound(err, "default address")
	}
	return &addr, nil
}

// Create adds an address. The user's first address becomes the default.
func (s *AddressService) Create(ctx context.Context, userID uint, in AddressInput) (*models.DeliveryAddress, error) {
	if err := validateAddressInput(in); err != nil {
		return nil, err
	}

	addr := models.DeliveryAddress{
		UserID:        userID,
		Title:         in.Title,
		RecipientName: in.RecipientName,
		Phone:         in.Phone,
		City:          in.City,
		Street:        in.Street,
		Building:      in.Building,
		Apartment:     in.Apartment,
		PostalCode:    in.PostalCode,
		IsActive:      true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.DeliveryAddress{}).Where("user_id = ?", userID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to count addresses: %w", err)
		}
		if err := tx.Create(&addr).Error; err != nil {
			return fmt.Errorf("failed to create address: %w", err)
		}
		if in.IsDefault || existing == 0 {
			if err := setExclusiveFlag(tx, &models.DeliveryAddress{}, "user_id", userID, "is_default", addr.ID); err != nil {
				return err
			}
			addr.IsDefault = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// Update edits an address owned by the user
func (s *AddressService) Update(ctx context.Context, userID, addressID uint, in AddressInput) (*models.DeliveryAddress, error) {
	if err := validateAddressInput(in); err != nil {
		return nil, err
	}

	var addr models.DeliveryAddress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", addressID, userID).First(&addr).Error; err != nil {
			return notFound(err, "address")
		}
		if err := tx.Model(&addr).Updates(map[string]interface{}{
			"title":          in.Title,
			"recipient_name": in.RecipientName,
			"phone":          in.Phone,
			"city":           in.City,
			"street":         in.Street,
			"building":       in.Building,
			"apartment":      in.Apartment,
			"postal_code":    in.PostalCode,
		}).Error; err != nil {
			return fmt.Errorf("failed to update address: %w", err)
		}
		if in.IsDefault && !addr.IsDefault {
			if err := setExclusiveFlag(tx, &models.DeliveryAddress{}, "user_id", userID, "is_default", addr.ID); err != nil {
				return err
			}
		}
		return tx.First(&addr, addr.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// SetDefault makes the address the user's only default
func (s *AddressService) SetDefault(ctx context.Context, userID, addressID uint) (*models.DeliveryAddress, error) {
	var addr models.DeliveryAddress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := setExclusiveFlag(tx, &models.DeliveryAddress{}, "user_id", userID, "is_default", addressID)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("address %d: %w", addressID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return tx.First(&addr, addressID).Error
	})
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// Delete removes an address owned by the user.
// Deleting the default leaves the user without a default until one is chosen.
func (s *AddressService) Delete(ctx context.Context, userID, addressID uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		Delete(&models.DeliveryAddress{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete address: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("address %d: %w", addressID, ErrNotFound)
	}
	return nil
}

func validateAddressInput(in AddressInput) error {
	verrs := &ValidationErrors{}
	if strings.TrimSpace(in.RecipientName) == "" {
		verrs.Add("recipient_name", "is required")
	}
	if !phonePattern.MatchString(in.Phone) {
		verrs.Add("phone", "must be a valid phone number")
	}
	if strings.TrimSpace(in.City) == "" {
		verrs.Add("city", "is required")
	}
	if strings.TrimSpace(in.Street) == "" {
		verrs.Add("street", "is required")
	}
	return verrs.OrNil()
}
