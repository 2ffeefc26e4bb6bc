package models

type Instrument struct {
	ID                string
	Name              string
	TickSize          float64
	MinQty            float64
	MaxDeviationTicks int
}
