package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one committed ledger event.
type EventRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence    uint64    `gorm:"index;not null"`
	Position    int       `gorm:"not null"`
	TxHash      string    `gorm:"size:66;index"`
	Signer      string    `gorm:"size:64;index"`
	Type        string    `gorm:"size:64;index"`
	Treasury    string    `gorm:"size:64;index"`
	Beneficiary string    `gorm:"size:64;index"`
	Attributes  string    `gorm:"type:text"`
	BlockTime   time.Time `gorm:"index"`
	CreatedAt   time.Time
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
