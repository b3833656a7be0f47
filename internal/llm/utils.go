package llm

import (
	"encoding/base64"

	"github.com/joseph-ayodele/pipetakeoff/constants"
)

// DataURL inlines b as a base64 data URL.
func DataURL(mimeType string, b []byte) string {
	if mimeType == "" {
		mimeType = constants.PNGMimeType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(b)
}
