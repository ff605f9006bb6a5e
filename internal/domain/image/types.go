package image

import stdimage "image"

// Dimensions are the intrinsic pixel size of a badge image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ValidatedImage is a badge that passed validation. URL is the original remote URL,
// or a data URL when the source had to be converted. Thumbnail is the badge scaled to
// the compositor's badge size.
type ValidatedImage struct {
	URL        string         `json:"url"`
	Dimensions Dimensions     `json:"dimensions"`
	Format     string         `json:"format"`
	Converted  bool           `json:"converted"`
	Thumbnail  stdimage.Image `json:"-"`
}
