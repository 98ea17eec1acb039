package services

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// setExclusiveFlag sets flagColumn on the record and clears it on every other record of the same owner.
// Both writes run on tx, so callers get all-or-nothing semantics from their transaction.
// The partial unique index on (ownerColumn) WHERE flagColumn catches concurrent writers;
// such a violation is reported as ErrConflict.
func setExclusiveFlag(tx *gorm.DB, model interface{}, ownerColumn string, ownerID uint, flagColumn string, recordID uint) error {
	if err := tx.Model(model).
		Where(ownerColumn+" = ? AND "+flagColumn+" = ? AND id <> ?", ownerID, true, recordID).
		Update(flagColumn, false).Error; err != nil {
		return fmt.Errorf("failed to clear %s: %w", flagColumn, err)
	}

	result := tx.Model(model).
		Where("id = ? AND "+ownerColumn+" = ?", recordID, ownerID).
		Update(flagColumn, true)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			slog.Error("exclusive flag constraint violated",
				"model", fmt.Sprintf("%T", model), "flag", flagColumn, "owner", ownerID, "record", recordID, "error", result.Error)
			return fmt.Errorf("%s already set for owner %d: %w", flagColumn, ownerID, ErrConflict)
		}
		return fmt.Errorf("failed to set %s: %w", flagColumn, result.Error)
	}

	if result.RowsAffected == 0 {
		// MySQL reports zero affected rows when the value did not change
		var count int64
		if err := tx.Model(model).Where("id = ? AND "+ownerColumn+" = ?", recordID, ownerID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check record: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}
