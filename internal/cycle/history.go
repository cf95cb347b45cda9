package cycle

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgtype"
	"github.com/powdertrack/snowengine/internal/types"
	"gorm.io/gorm"
)

// VerdictRecord is one location verdict appended to the history table each
// cycle, with the per-site detail as a JSONB payload.
type VerdictRecord struct {
	gorm.Model

	LocationID     string       `gorm:"index;not null"`
	OverallQuality string       `gorm:"not null"`
	AssessedAt     time.Time    `gorm:"index;not null"`
	Sites          pgtype.JSONB `gorm:"type:jsonb;default:'[]';not null"`
}

func (VerdictRecord) TableName() string {
	return "location_verdicts"
}

// appendHistory writes one verdict to the history table. Best-effort: the
// caller logs failures and the cycle proceeds.
func appendHistory(db *gorm.DB, v types.LocationVerdict) error {
	payload, err := json.Marshal(v.Sites)
	if err != nil {
		return err
	}
	var sites pgtype.JSONB
	if err := sites.Set(payload); err != nil {
		return err
	}
	record := VerdictRecord{
		LocationID:     v.LocationID,
		OverallQuality: v.OverallName,
		AssessedAt:     v.AssessedAt,
		Sites:          sites,
	}
	return db.Create(&record).Error
}
