package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type EquipmentStatus string

const (
	EquipmentAvailable EquipmentStatus = "available"
	EquipmentBusy      EquipmentStatus = "busy"
)

func (s EquipmentStatus) Valid() bool {
	return s == EquipmentAvailable || s == EquipmentBusy
}

type Category string

const (
	CategoryWoodSaw        Category = "wood_saw"
	CategoryGarbageTruck   Category = "garbage_truck"
	CategoryHeavyEquipment Category = "heavy_equipment"
	CategoryExcavator      Category = "excavator"
	CategoryCrane          Category = "crane"
	CategoryBulldozer      Category = "bulldozer"
	CategoryCementMixer    Category = "cement_mixer"
	CategoryPowerGenerator Category = "power_generator"
	CategoryAirCompressor  Category = "air_compressor"
	CategoryOther          Category = "other"
)

var categories = []Category{
	CategoryWoodSaw,
	CategoryGarbageTruck,
	CategoryHeavyEquipment,
	CategoryExcavator,
	CategoryCrane,
	CategoryBulldozer,
	CategoryCementMixer,
	CategoryPowerGenerator,
	CategoryAirCompressor,
	CategoryOther,
}

// Categories returns the closed category list in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

type Equipment struct {
	ID           int64           `json:"id" db:"id"`
	OwnerID      int64           `json:"ownerId" db:"owner_id"`
	Title        string          `json:"title" db:"title"`
	Category     Category        `json:"category" db:"category"`
	Description  string          `json:"description" db:"description"`
	PricePerDay  float64         `json:"pricePerDay" db:"price_per_day"`
	PricePerHour *float64        `json:"pricePerHour,omitempty" db:"price_per_hour"`
	City         string          `json:"city" db:"city"`
	Images       StringList      `json:"images" db:"images"`
	PhoneNumber  string          `json:"phoneNumber" db:"phone_number"`
	Status       EquipmentStatus `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`

	Owner *UserSummary `json:"owner,omitempty" db:"-"`
}

// EquipmentFilter narrows catalog listings. Empty fields match everything.
type EquipmentFilter struct {
	City     string
	Category Category
	Status   EquipmentStatus
	Search   string
	OwnerID  int64
}

// EquipmentSummary is the listing card attached to requests.
type EquipmentSummary struct {
	ID          int64           `json:"id"`
	OwnerID     int64           `json:"ownerId"`
	Title       string          `json:"title"`
	Category    Category        `json:"category"`
	City        string          `json:"city"`
	PricePerDay float64         `json:"pricePerDay"`
	Images      StringList      `json:"images"`
	Status      EquipmentStatus `json:"status"`
}

// StringList is stored as a JSON array in a TEXT column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported type for StringList: %T", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode string list: %w", err)
	}
	*l = out
	return nil
}
