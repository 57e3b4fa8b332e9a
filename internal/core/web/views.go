package web

import "github.com/seckatie/urlhealth/internal/core/render"

// pageView is what the index page and the panel fragment render.
type pageView struct {
	SessionID string
	Lang      string
	// Version is the store version the model was projected from.
	Version uint64
	Model   render.DisplayModel
	OOB     bool // true when pushed as an out-of-band swap
}
