package service

import (
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/event-manager/internal/model"
	"github.com/shopspring/decimal"
)

// ParseNewEvent turns raw text input into EventInfo. Range checks (past date,
// capacity, price sign) are left to AddEvent.
func ParseNewEvent(name, date, location, capacity, category, price string) (model.EventInfo, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return model.EventInfo{}, err
	}
	c, err := strconv.Atoi(strings.TrimSpace(capacity))
	if err != nil {
		return model.EventInfo{}, &model.ValidationError{Reason: "capacity must be a whole number"}
	}
	p, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return model.EventInfo{}, &model.ValidationError{Reason: "price must be a number"}
	}

	return model.EventInfo{
		Name:     strings.TrimSpace(name),
		Date:     d,
		Location: strings.TrimSpace(location),
		Capacity: c,
		Category: strings.TrimSpace(category),
		Price:    p,
	}, nil
}
