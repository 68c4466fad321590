package model

// Period is the calendar window a usage counter resets on.
type Period string

const (
	PeriodHour Period = "hour"
	PeriodDay  Period = "day"
)

// Decision is the outcome of a usage admission check. A denial is a defined
// terminal outcome, not an error.
type Decision struct {
	Admitted bool   `json:"admitted"`
	Count    int    `json:"count"`
	Limit    int    `json:"limit"`
	Period   Period `json:"period"`
}

// RateLimitedResponse is returned when a question is denied admission.
type RateLimitedResponse struct {
	Error   string `json:"error"`
	Current int    `json:"current"`
	Limit   int    `json:"limit"`
	Period  Period `json:"period"`
}
