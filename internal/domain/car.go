package domain

import "time"

type Car struct {
	ID             int64
	Name           string
	Brand          string
	Slug           string
	NumberPlate    string
	Transmission   string
	FuelType       string
	Seats          int
	Doors          int
	Quantity       int
	DailyRate      Money
	TwelveHourRate Money
	Status         string
	Image          string
	IsFeatured     bool
	CreatedAt      time.Time
}

type Coupon struct {
	ID                 int64
	Code               string
	DiscountPercentage float64
	ValidFrom          time.Time
	ValidTo            time.Time
	UsageLimit         int
	UsageCount         int
	Active             bool
}
