package domain

import "time"

// TimelineEvent — одна запись хронологии заказа: что произошло,
// когда и по какой причине.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
