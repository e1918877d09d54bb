package model

// User 后台用户 (卖家)
type User struct {
	BaseModel
	Username string `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email    string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"` // bcrypt 哈希
	Phone    string `gorm:"size:32" json:"phone"`
	Timezone string `gorm:"size:64;default:'UTC'" json:"timezone"`

	// 系统级角色: admin / seller
	Role     string `gorm:"size:20;default:'seller'" json:"role"`
	IsActive bool   `gorm:"not null" json:"is_active"`

	// 用户删除时连带删除店铺
	Shops []Shop `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string {
	return "users"
}
