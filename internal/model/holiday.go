package model

import "time"

type Holiday struct {
	Date      time.Time `gorm:"type:date;primaryKey" json:"date"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Holiday) TableName() string {
	return "holidays"
}
