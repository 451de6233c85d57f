package feedback

// Category identifies which part of an extraction the correction targets.
// Weights express how strongly a category's rating should move confidence:
// a transcription error or manual override says more about extraction
// quality than a tweaked description.
type Category string

const (
	CategoryCustomerName         Category = "CUSTOMER_NAME_CORRECTION"
	CategoryServiceType          Category = "SERVICE_TYPE_CORRECTION"
	CategoryAddress              Category = "ADDRESS_CORRECTION"
	CategoryDateTime             Category = "DATE_TIME_CORRECTION"
	CategoryPhoneEmail           Category = "PHONE_EMAIL_CORRECTION"
	CategoryUrgency              Category = "URGENCY_CORRECTION"
	CategoryPrice                Category = "PRICE_CORRECTION"
	CategoryDescription          Category = "DESCRIPTION_CORRECTION"
	CategoryAppointmentExists    Category = "APPOINTMENT_EXISTS"
	CategoryNoAppointment        Category = "NO_APPOINTMENT"
	CategoryTranscriptionError   Category = "TRANSCRIPTION_ERROR"
	CategoryMultipleAppointments Category = "MULTIPLE_APPOINTMENTS"
	CategoryManualOverride       Category = "MANUAL_OVERRIDE"
)

const defaultWeight = 0.05

var categoryWeights = map[Category]float64{
	CategoryCustomerName:         0.15,
	CategoryServiceType:          0.12,
	CategoryAddress:              0.10,
	CategoryDateTime:             0.10,
	CategoryPhoneEmail:           0.08,
	CategoryUrgency:              0.05,
	CategoryPrice:                0.08,
	CategoryDescription:          0.05,
	CategoryAppointmentExists:    0.20,
	CategoryNoAppointment:        0.25,
	CategoryTranscriptionError:   0.30,
	CategoryMultipleAppointments: 0.18,
	CategoryManualOverride:       0.35,
}

// Known reports whether the category is part of the closed set.
func (c Category) Known() bool {
	_, ok := categoryWeights[c]
	return ok
}

// Weight returns the category's base weight, falling back to a small default
// so unknown categories recorded by older clients still adjust gently.
func (c Category) Weight() float64 {
	if w, ok := categoryWeights[c]; ok {
		return w
	}
	return defaultWeight
}

// Adjustment converts a 1-5 rating into a signed confidence delta. A rating
// of 3 is neutral; 5 yields +weight, 1 yields -weight.
func Adjustment(category Category, rating int) float64 {
	return category.Weight() * (float64(rating) - 3) / 2
}
