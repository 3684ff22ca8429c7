package slackify

// BlockType represents the type of a display block.
type BlockType int

const (
	// BlockTypeDivider represents a horizontal separator.
	BlockTypeDivider BlockType = iota
	// BlockTypeLabel represents a small caption above code or diagrams.
	BlockTypeLabel
	// BlockTypeText represents a section of mrkdwn text.
	BlockTypeText
	// BlockTypeImage represents an image preview.
	BlockTypeImage
)

// String returns the string representation of BlockType.
func (bt BlockType) String() string {
	switch bt {
	case BlockTypeDivider:
		return "divider"
	case BlockTypeLabel:
		return "label"
	case BlockTypeText:
		return "text"
	case BlockTypeImage:
		return "image"
	default:
		return "unknown"
	}
}

// Block is an abstract, platform-agnostic unit of rendered output.
// Blocks are created by the assembler and never mutated afterwards.
type Block interface {
	GetBlockType() BlockType
}

// Divider separates a code or diagram span from what precedes it.
type Divider struct{}

// GetBlockType returns BlockTypeDivider.
func (d *Divider) GetBlockType() BlockType {
	return BlockTypeDivider
}

// Label names the content that follows it, e.g. "Language: python".
type Label struct {
	Text string
}

// GetBlockType returns BlockTypeLabel.
func (l *Label) GetBlockType() BlockType {
	return BlockTypeLabel
}

// Text holds one chunk of mrkdwn markup.
type Text struct {
	Markup string
}

// GetBlockType returns BlockTypeText.
func (t *Text) GetBlockType() BlockType {
	return BlockTypeText
}

// Image is a rendered diagram preview.
type Image struct {
	URL     string
	AltText string
}

// GetBlockType returns BlockTypeImage.
func (i *Image) GetBlockType() BlockType {
	return BlockTypeImage
}
