package models


// Report is the full result of one report request.
type Report struct {
	Stats     Stats                 `json:"stats"`
	History   []GroupedTransaction  `json:"history"`
	Breakdown []CategoryGroup       `json:"breakdown"`
	Issues    []*DataIntegrityError `json:"issues,omitempty"`
	Count     int                   `json:"count"`
	Currency  string                `json:"currency"`
	Mode      BreakdownMode         `json:"mode"`
}
