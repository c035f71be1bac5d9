package model

import (
	"time"

	"github.com/google/uuid"
)

type OrderCreated struct {
	OrderID        uuid.UUID `json:"orderID"`
	AffectedFields []string  `json:"affectedFields"`
	Actor          string    `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e OrderCreated) Type() string { return "order:created" }

type OrderStatusUpdated struct {
	OrderID        uuid.UUID   `json:"orderID"`
	AffectedFields []string    `json:"affectedFields"`
	Status         OrderStatus `json:"status"`
	TrackingNumber string      `json:"trackingNumber,omitempty"`
	Actor          string      `json:"actor"`
	Timestamp      time.Time   `json:"timestamp"`
}

func (e OrderStatusUpdated) Type() string { return "order:status_updated" }

type OrderCancelled struct {
	OrderID        uuid.UUID `json:"orderID"`
	AffectedFields []string  `json:"affectedFields"`
	Reason         string    `json:"reason"`
	Actor          string    `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e OrderCancelled) Type() string { return "order:cancelled" }
