package models

// AnalyzeRequest asks for a decision between two coordinates.
type AnalyzeRequest struct {
	Origin      *Point `json:"origin"`
	Destination *Point `json:"destination"`
}

// PlanRequest asks for a decision between two addresses. Either address
// may be "Ma position" when CurrentPosition is given.
type PlanRequest struct {
	From            string `json:"from"`
	To              string `json:"to"`
	CurrentPosition *Point `json:"currentPosition,omitempty"`
}

// AddressSuggestion is one autocomplete result.
type AddressSuggestion struct {
	DisplayName string  `json:"displayName"`
	FullName    string  `json:"fullName"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Type        string  `json:"type,omitempty"`
}

// AddressSuggestions is the autocomplete response.
type AddressSuggestions struct {
	Query string              `json:"query"`
	Items []AddressSuggestion `json:"items"`
}
