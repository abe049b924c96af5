package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FoodIngredient 食材主檔（唯讀），表 pangan
type FoodIngredient struct {
	ID                  uint            `gorm:"column:id_pangan;primaryKey" json:"id_pangan"`
	Name                string          `gorm:"column:nama_pangan;size:191" json:"nama_pangan"`
	Gram                decimal.Decimal `gorm:"column:gram;type:numeric(10,2)" json:"gram"`
	Calories            decimal.Decimal `gorm:"column:kalori;type:numeric(10,2)" json:"kalori"`
	Fat                 decimal.Decimal `gorm:"column:lemak;type:numeric(10,2)" json:"lemak"`
	Carbohydrate        decimal.Decimal `gorm:"column:karbohidrat;type:numeric(10,2)" json:"karbohidrat"`
	Protein             decimal.Decimal `gorm:"column:protein;type:numeric(10,2)" json:"protein"`
	FoodTypeID          *uint           `gorm:"column:id_jenis_pangan" json:"id_jenis_pangan"`
	MeasureID           *uint           `gorm:"column:id_takaran" json:"id_takaran"`
	ReferenceUnit       string          `gorm:"column:referensi_urt;size:255" json:"referensi_urt"`
	ReferenceUnitWeight decimal.Decimal `gorm:"column:referensi_gram_berat;type:numeric(10,2)" json:"referensi_gram_berat"`
}

// TableName 指定表名
func (FoodIngredient) TableName() string {
	return "pangan"
}

// BreakdownEntry 單一食材成分（配方快取 JSON 內的元素）
type BreakdownEntry struct {
	IngredientName      string          `json:"nama_bahan"`
	StandardQuantity    decimal.Decimal `json:"jumlah_standar"`
	UnitLabel           string          `json:"satuan"`
	CatalogID           *uint           `json:"id_pangan,omitempty"`
	ReferenceUnitWeight decimal.Decimal `json:"berat_per_urt,omitempty"`
}

// Resolvable 判斷此成分是否已對應到食材主檔且可換算
func (e BreakdownEntry) Resolvable() bool {
	return e.CatalogID != nil && !e.ReferenceUnitWeight.IsZero()
}

// BreakdownList 成分清單，以 JSON 形式存入資料庫
type BreakdownList []BreakdownEntry

// Scan 實作 sql.Scanner
func (l *BreakdownList) Scan(value interface{}) error {
	if value == nil {
		*l = BreakdownList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into BreakdownList", value)
	}
}

// Value 實作 driver.Valuer
func (l BreakdownList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

// RecipeCache 料理配方快取，表 resep_cache
type RecipeCache struct {
	ID              uint            `gorm:"column:id_resep_cache;primaryKey" json:"id_resep_cache"`
	DishName        string          `gorm:"column:nama_olahan;size:191;uniqueIndex" json:"nama_olahan"`
	VectorRecordID  string          `gorm:"column:resep_id_vdb;size:191" json:"resep_id_vdb"`
	Breakdown       BreakdownList   `gorm:"column:bahan_parsed;type:json" json:"bahan_parsed"`
	StandardPortion decimal.Decimal `gorm:"column:standar_porsi;type:numeric(8,2)" json:"standar_porsi"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 指定表名
func (RecipeCache) TableName() string {
	return "resep_cache"
}

// HouseholdFood 家戶食材攝取紀錄，表 pangan_keluarga
type HouseholdFood struct {
	ID           uint            `gorm:"column:id_pangan_keluarga;primaryKey" json:"id_pangan_keluarga"`
	IngredientID uint            `gorm:"column:id_pangan" json:"id_pangan"`
	FamilyID     uint            `gorm:"column:id_keluarga" json:"id_keluarga"`
	Quantity     decimal.Decimal `gorm:"column:urt;type:numeric(8,2)" json:"urt"`
	Date         time.Time       `gorm:"column:tanggal;type:date" json:"tanggal"`
}

// TableName 指定表名
func (HouseholdFood) TableName() string {
	return "pangan_keluarga"
}

// Family 家戶，表 keluarga（僅作為外鍵對象）
type Family struct {
	ID   uint   `gorm:"column:id_keluarga;primaryKey" json:"id_keluarga"`
	Name string `gorm:"column:nama_keluarga;size:191" json:"nama_keluarga"`
}

// TableName 指定表名
func (Family) TableName() string {
	return "keluarga"
}
