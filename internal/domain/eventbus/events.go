package eventbus

import "time"

const (
	// EventPreviewWarm asks for an address's card to be re-rendered. Payload: WarmEventData.
	EventPreviewWarm = "preview:warm"
)

type WarmEventData struct {
	Address     string    `json:"address"`
	Source      string    `json:"source"`
	RequestedAt time.Time `json:"requested_at"`
}
