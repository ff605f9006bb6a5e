// Package preview turns an address into a card image: redirect to a fresh CDN copy,
// or render, respond, and hand the bytes to the background uploader.
package preview

import (
	"context"
	stdimage "image"
	"io"

	"poap-og-server/internal/domain/badge"
	"poap-og-server/internal/domain/compose"
	"poap-og-server/internal/domain/freshness"
	domainimage "poap-og-server/internal/domain/image"
)

const (
	ContentType  = "image/png"
	CacheControl = "public, max-age=86400"
)

// Request is the transport-independent view of one inbound call.
type Request struct {
	Method string
	// Addresses holds every value supplied for the address; exactly one is accepted.
	Addresses []string
	// Body is read only for POST.
	Body io.Reader
}

// Payload is the trusted caller body.
type Payload struct {
	Poaps         []badge.Record `json:"poaps"`
	LatestMoments []badge.Moment `json:"latestMoments,omitempty"`
	Key           string         `json:"poapapikey"`
}

// Responder writes the outcome of a request. Exactly one method is called per request.
type Responder interface {
	Redirect(url string)
	Image(png []byte) error
	Fail(err error)
}

// EntryReader is the read side of the freshness cache.
type EntryReader interface {
	Get(ctx context.Context, key string) *freshness.Entry
}

// BadgeValidator validates badges and loads one-off images such as moment backgrounds.
type BadgeValidator interface {
	ValidateAndProcess(ctx context.Context, url string) (domainimage.ValidatedImage, error)
	Load(ctx context.Context, url string) (stdimage.Image, error)
}

// UploadJob is one rendered card waiting for the CDN.
type UploadJob struct {
	Address string
	PNG     []byte
}

// UploadQueue accepts upload jobs without blocking.
type UploadQueue interface {
	Submit(job UploadJob) error
}

// RenderFunc produces the encoded card.
type RenderFunc func(compose.Input) ([]byte, error)
