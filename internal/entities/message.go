package entities

// GenerationMode selects text-to-image or image editing.
type GenerationMode string

const (
	ModeTxt2Img GenerationMode = "txt2img"
	ModeImg2Img GenerationMode = "img2img"
)

// DefaultAspectRatio is used when the user never picked one.
const DefaultAspectRatio = "1:1"

type GenerationRequest struct {
	ID          string
	UserID      int64
	ChatID      int64
	Prompt      string // already translated when it reaches the generator
	Mode        GenerationMode
	AspectRatio string
	ImageURLs   []string // img2img inputs
}

type GenerationResult struct {
	ImageURL string
}
