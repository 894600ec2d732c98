package models

// EventType tags a ProgressEvent.
type EventType string

const (
	EventStart    EventType = "start"
	EventFetching EventType = "fetching"
	EventProgress EventType = "progress"
	EventWaiting  EventType = "waiting"
	EventComplete EventType = "complete"
	EventProducts EventType = "products"
	EventDone     EventType = "done"
	EventWarning  EventType = "warning"
	EventError    EventType = "error"
)

// ProgressEvent is one frame of a scrape or upload stream. Only the fields
// relevant to Type are populated.
type ProgressEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Domain  string    `json:"domain,omitempty"`

	Page      int `json:"page,omitempty"`
	PageCount int `json:"pageCount,omitempty"`
	Total     int `json:"total,omitempty"`

	// waiting
	DelayMs int64  `json:"delayMs,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Attempt int    `json:"attempt,omitempty"`

	// products
	Products []*ScrapedProduct `json:"products,omitempty"`
	Chunk    int               `json:"chunk,omitempty"`
	Chunks   int               `json:"chunks,omitempty"`

	// complete / done
	Pages int `json:"pages,omitempty"`

	// error
	Code string `json:"code,omitempty"`

	// upload streams
	Upload *UploadProgress `json:"upload,omitempty"`
}

// Emitter receives progress events. Implementations are called from a single
// goroutine per run.
type Emitter func(ProgressEvent)
