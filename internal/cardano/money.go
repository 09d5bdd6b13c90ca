package cardano

import "math"

// LovelacePerAda is the number of lovelace in one ADA.
const LovelacePerAda = 1_000_000

// Lovelace is the native currency unit identifier used by the ledger.
const Lovelace = "lovelace"

// ToLovelace converts an ADA amount to lovelace, truncating toward zero.
// The conversion never rounds up: a payer is never charged more than the
// stated ADA amount. Values within 1e-4 lovelace of an integer are snapped
// to it so binary float representation error does not eat a whole lovelace.
func ToLovelace(ada float64) int64 {
	scaled := ada * LovelacePerAda
	rounded := math.Round(scaled)
	if math.Abs(scaled-rounded) < 1e-4 {
		return int64(rounded)
	}
	return int64(math.Trunc(scaled))
}

// FromLovelace converts lovelace back to an ADA amount.
func FromLovelace(lovelace int64) float64 {
	return float64(lovelace) / LovelacePerAda
}

// PerParticipantLovelace splits a total evenly across count participants,
// rounding down. The remainder stays with the bill total and is never
// charged to anyone.
func PerParticipantLovelace(totalLovelace int64, count int) int64 {
	if count <= 0 {
		return 0
	}
	return totalLovelace / int64(count)
}
