package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/Kopi-Koubou/aura-backend/pkg/db/types"
	"github.com/Kopi-Koubou/aura-backend/pkg/enums"
)

// ShareEvent is one share action and the deep link minted for it.
type ShareEvent struct {
	ID             uuid.UUID              `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	ContentType    enums.ShareContentType `gorm:"column:content_type;type:text;not null"`
	ContentID      *string                `gorm:"column:content_id"`
	SharePlatform  enums.SharePlatform    `gorm:"column:share_platform;type:text;not null"`
	DeepLinkID     string                 `gorm:"column:deep_link_id;type:text;not null;uniqueIndex:uq_share_events_deep_link_id"`
	UTMCampaign    string                 `gorm:"column:utm_campaign;not null"`
	ReferralCodeID *uuid.UUID             `gorm:"column:referral_code_id;type:uuid"`
	ClickCount     int64                  `gorm:"column:click_count;not null;default:0"`
	Metadata       dbtypes.JSON           `gorm:"column:metadata"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`

	ReferralCode *ReferralCode `gorm:"foreignKey:ReferralCodeID"`
}

func (ShareEvent) TableName() string { return "share_events" }

func (s *ShareEvent) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ShareClickEvent is one resolved click on a deep link.
type ShareClickEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShareEventID uuid.UUID `gorm:"column:share_event_id;type:uuid;not null;index"`
	UserAgent    *string   `gorm:"column:user_agent"`
	Referrer     *string   `gorm:"column:referrer"`
	IPCountry    *string   `gorm:"column:ip_country"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ShareClickEvent) TableName() string { return "share_click_events" }

func (c *ShareClickEvent) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
