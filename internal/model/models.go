package model

// All 需要自动迁移的模型，按依赖顺序
func All() []interface{} {
	return []interface{}{
		&User{},
		&Shop{},
		&Product{},
		&Order{},
		&OrderItem{},
	}
}
