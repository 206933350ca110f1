package models

import "time"

const DefaultCurrency = "KES"

// Fixed receipt shares of the finalized total. Display only; the stored
// record carries a single fare amount.
const (
	fareBaseShare     = 0.6
	fareDistanceShare = 0.3
	fareTaxShare      = 0.1
)

// FareBreakdown is a pure derivation from the finalized fare, rendered on
// the receipt screen. It is never persisted.
type FareBreakdown struct {
	Base     float64 `json:"base"`
	Distance float64 `json:"distance"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

// Receipt is the rider-facing record of a completed ride.
type Receipt struct {
	RideID        string        `json:"ride_id"`
	RideNumber    string        `json:"ride_number"`
	Pickup        Location      `json:"pickup"`
	Dropoff       Location      `json:"dropoff"`
	PaymentMethod string        `json:"payment_method"`
	Breakdown     FareBreakdown `json:"breakdown"`
	CompletedAt   *time.Time    `json:"completed_at"`
	Rating        *int          `json:"rating,omitempty"`
}

// NewReceipt derives a receipt from a completed ride. The ride must carry
// a finalized fare.
func NewReceipt(ride *Ride) *Receipt {
	receipt := &Receipt{
		RideID:      ride.ID.Hex(),
		RideNumber:  ride.RideNumber,
		Pickup:      ride.Pickup,
		Dropoff:     ride.Dropoff,
		Breakdown:   BreakdownFare(*ride.Fare),
		CompletedAt: ride.CompletedAt,
		Rating:      ride.Rating,
	}
	if ride.PaymentMethod != nil {
		receipt.PaymentMethod = *ride.PaymentMethod
	}
	return receipt
}

// EarningsSummary totals a driver's completed fares.
type EarningsSummary struct {
	Total     float64 `json:"total"`
	RideCount int     `json:"ride_count"`
	Currency  string  `json:"currency"`
}

func BreakdownFare(total float64) FareBreakdown {
	base := total * fareBaseShare
	distance := total * fareDistanceShare
	return FareBreakdown{
		Base:     base,
		Distance: distance,
		Tax:      total - base - distance,
		Total:    total,
		Currency: DefaultCurrency,
	}
}
