package notion

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type BlockType string

const (
	BlockTypeLinkPreview      BlockType = "link_preview"
	BlockTypeLinkToPage       BlockType = "link_to_page"
	BlockTypeParagraph        BlockType = "paragraph"
	BlockTypeHeading1         BlockType = "heading_1"
	BlockTypeHeading2         BlockType = "heading_2"
	BlockTypeHeading3         BlockType = "heading_3"
	BlockTypeBulletedListItem BlockType = "bulleted_list_item"
	BlockTypeNumberedListItem BlockType = "numbered_list_item"
	BlockTypeToDo             BlockType = "to_do"
	BlockTypeToggle           BlockType = "toggle"
	BlockTypeQuote            BlockType = "quote"
	BlockTypeCallout          BlockType = "callout"
	BlockTypeCode             BlockType = "code"
	BlockTypeTemplate         BlockType = "template"
)

// richTextBlockTypes carry a rich_text array in their payload.
var richTextBlockTypes = map[BlockType]bool{
	BlockTypeParagraph:        true,
	BlockTypeHeading1:         true,
	BlockTypeHeading2:         true,
	BlockTypeHeading3:         true,
	BlockTypeBulletedListItem: true,
	BlockTypeNumberedListItem: true,
	BlockTypeToDo:             true,
	BlockTypeToggle:           true,
	BlockTypeQuote:            true,
	BlockTypeCallout:          true,
	BlockTypeCode:             true,
	BlockTypeTemplate:         true,
}

// BlockContent is the kind-specific payload of a block. It is one of
// *LinkPreview, *LinkToPage, *RichTextContent or *UnsupportedContent.
type BlockContent interface {
	blockContent()
}

type LinkPreview struct {
	URL string `json:"url"`
}

type LinkToPage struct {
	Type       string `json:"type"`
	PageID     string `json:"page_id,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
}

// RichTextContent is shared by every text-bearing block kind.
type RichTextContent struct {
	RichText []RichText `json:"rich_text"`
}

// UnsupportedContent holds the raw payload of a block kind without a typed
// model, or of a known kind whose payload did not decode. DecodeErr is set in
// the latter case.
type UnsupportedContent struct {
	Raw       json.RawMessage
	DecodeErr error
}

func (*LinkPreview) blockContent()        {}
func (*LinkToPage) blockContent()         {}
func (*RichTextContent) blockContent()    {}
func (*UnsupportedContent) blockContent() {}

// Block is one unit of page body content.
type Block struct {
	ID      string
	Type    BlockType
	Content BlockContent
}

type blockEnvelope struct {
	ID   string    `json:"id"`
	Type BlockType `json:"type"`
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var envelope blockEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	b.ID = envelope.ID
	b.Type = envelope.Type

	payload := fields[string(envelope.Type)]
	var content BlockContent
	switch {
	case envelope.Type == BlockTypeLinkPreview:
		content = &LinkPreview{}
	case envelope.Type == BlockTypeLinkToPage:
		content = &LinkToPage{}
	case richTextBlockTypes[envelope.Type]:
		content = &RichTextContent{}
	default:
		b.Content = &UnsupportedContent{Raw: payload}
		return nil
	}
	if len(payload) > 0 && !bytes.Equal(payload, []byte("null")) {
		if err := json.Unmarshal(payload, content); err != nil {
			// a malformed payload only costs this block its references
			b.Content = &UnsupportedContent{
				Raw:       payload,
				DecodeErr: fmt.Errorf("failed to decode %s block %s: %w", envelope.Type, envelope.ID, err),
			}
			return nil
		}
	}
	b.Content = content
	return nil
}

type RichText struct {
	Type      string   `json:"type"`
	PlainText string   `json:"plain_text"`
	Href      string   `json:"href,omitempty"`
	Text      *Text    `json:"text,omitempty"`
	Mention   *Mention `json:"mention,omitempty"`
}

type Text struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

type Link struct {
	URL string `json:"url"`
}

type Mention struct {
	Type string     `json:"type"`
	Page *ObjectRef `json:"page,omitempty"`
}

type ObjectRef struct {
	ID string `json:"id"`
}

// Property is one named entry of a page's property map.
type Property struct {
	Name  string     `json:"-"`
	ID    string     `json:"id"`
	Type  string     `json:"type"`
	Title []RichText `json:"title,omitempty"`
}

// Properties keeps the property map in the order the store sent it.
type Properties []Property

func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties: expected object, got %v", tok)
	}
	var props Properties
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("properties: unexpected key %v", keyTok)
		}
		var prop Property
		if err := dec.Decode(&prop); err != nil {
			return fmt.Errorf("properties: failed to decode %q: %w", name, err)
		}
		prop.Name = name
		props = append(props, prop)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = props
	return nil
}

func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prop := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(prop.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(prop)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Page is a database row as returned by a database query.
type Page struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Properties Properties `json:"properties"`
}

type listResponse[T any] struct {
	Object     string `json:"object"`
	Results    []T    `json:"results"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}
