package model

import (
	"time"
)

// BaseModel 公共字段
// 不带 DeletedAt: 断开店铺是物理删除，软删除会让 etsy_shop_id 唯一索引无法复用
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
