package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 主数据（工人、工地）使用，带软删除
type BaseModel struct {
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
}

// RecordModel 引擎产生的记录不做软删除，唯一约束需要覆盖全部行
type RecordModel struct {
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
}

// DateLayout 业务日期统一按 YYYY-MM-DD 字符串落库
const DateLayout = time.DateOnly
