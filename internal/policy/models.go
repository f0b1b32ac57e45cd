package policy

// Policy is a stored insurance policy as returned by the backend.
type Policy struct {
	ID      int64   `json:"id" yaml:"id"`
	Number  string  `json:"number" yaml:"number"`
	Holder  string  `json:"holder" yaml:"holder"`
	Premium float64 `json:"premium" yaml:"premium"`
	Status  string  `json:"status" yaml:"status"`
}

// NewPolicy is the creation payload.
type NewPolicy struct {
	Number  string  `json:"number"`
	Holder  string  `json:"holder"`
	Premium float64 `json:"premium"`
	Status  string  `json:"status"`
}

// AuthMode is what the backend expects from anonymous callers.
type AuthMode string

const (
	AuthOpen     AuthMode = "open"
	AuthRequired AuthMode = "required"
)

// Page is one listing result. Total is the backend's X-Total-Count, or -1
// when the backend did not send it.
type Page struct {
	Items []Policy `json:"items" yaml:"items"`
	Total int      `json:"total" yaml:"total"`
}
