package stats

// Subject is a named demographic quantity. A subject may declare another
// subject as the denominator for its percentage view; the zero value means
// no percentage is derived.
type Subject struct {
	Name                  string `json:"name"`
	DisplayName           string `json:"display_name"`
	PercentageDenominator string `json:"percentage_denominator,omitempty"`
}

// Characteristic is the raw numeric value of one subject for one
// base-resolution geounit. Imported once, never mutated.
type Characteristic struct {
	Subject   string  `json:"subject"`
	GeoUnitID string  `json:"geounit_id"`
	Number    float64 `json:"number"`
}

// ComputedCharacteristic is the cached aggregate of a subject over one
// district snapshot's base units, with the derived percentage when the
// subject declares a denominator.
type ComputedCharacteristic struct {
	DistrictRowID int64   `json:"district_row_id"`
	Subject       string  `json:"subject"`
	Number        float64 `json:"number"`
	Percentage    float64 `json:"percentage"`
}
