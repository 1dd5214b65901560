package models

import "time"

// Customer owns its addresses (one-to-many). Finder methods over this
// pair live in repositories/customer.go.
type Customer struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	FirstName string    `json:"first_name" gorm:"index:idx_customers_name"`
	LastName  string    `json:"last_name" gorm:"index:idx_customers_name"`
	Addresses []Address `json:"addresses" gorm:"foreignKey:CustomerID"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Address struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	CustomerID uint   `json:"customer_id" gorm:"index"`
	Street     string `json:"street"`
	City       string `json:"city" gorm:"index"`
	Zip        string `json:"zip"`
}
