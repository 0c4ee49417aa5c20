package ingestion

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	changeFieldMessages = "messages"
	multimediaFallback  = "[Mensaje multimedia]"
)

// Envelope is the outer WhatsApp Cloud API webhook body. Entries and changes
// are kept raw so that one malformed element does not reject its siblings.
type Envelope struct {
	Object string            `json:"object"`
	Entry  []json.RawMessage `json:"entry"`
}

type entry struct {
	ID      string            `json:"id"`
	Changes []json.RawMessage `json:"changes"`
}

type change struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         metadata          `json:"metadata"`
	Contacts         []contact         `json:"contacts"`
	Messages         []json.RawMessage `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
}

type metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// InboundMessage is one element of value.messages.
type InboundMessage struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *textBody    `json:"text,omitempty"`
	Interactive *interactive `json:"interactive,omitempty"`
	Image       *media       `json:"image,omitempty"`
	Audio       *media       `json:"audio,omitempty"`
	Video       *media       `json:"video,omitempty"`
	Document    *media       `json:"document,omitempty"`
	Sticker     *media       `json:"sticker,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type interactive struct {
	Type        string       `json:"type"`
	ButtonReply *replyOption `json:"button_reply,omitempty"`
	ListReply   *replyOption `json:"list_reply,omitempty"`
}

type replyOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

// DeliveryStatus is one element of value.statuses.
type DeliveryStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// parseEnvelope rejects bodies whose entry field is missing or not an array.
func parseEnvelope(raw []byte) (Envelope, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Envelope{}, false
	}
	entries, ok := top["entry"]
	if !ok {
		return Envelope{}, false
	}
	trimmed := bytes.TrimSpace(entries)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return Envelope{}, false
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env.Entry); err != nil {
		return Envelope{}, false
	}
	if object, ok := top["object"]; ok {
		_ = json.Unmarshal(object, &env.Object)
	}
	return env, true
}

// BestEffortText picks the most meaningful text a message carries.
func (m InboundMessage) BestEffortText() string {
	if m.Text != nil && strings.TrimSpace(m.Text.Body) != "" {
		return m.Text.Body
	}
	if m.Interactive != nil {
		if m.Interactive.ButtonReply != nil && m.Interactive.ButtonReply.Title != "" {
			return m.Interactive.ButtonReply.Title
		}
		if m.Interactive.ListReply != nil && m.Interactive.ListReply.Title != "" {
			return m.Interactive.ListReply.Title
		}
	}
	if md := m.media(); md != nil && strings.TrimSpace(md.Caption) != "" {
		return md.Caption
	}
	return multimediaFallback
}

// MediaRef returns the provider media id, if any.
func (m InboundMessage) MediaRef() *string {
	md := m.media()
	if md == nil || md.ID == "" {
		return nil
	}
	id := md.ID
	return &id
}

// Kind defaults to text when the provider omits the type.
func (m InboundMessage) Kind() string {
	if m.Type == "" {
		return "text"
	}
	return m.Type
}

func (m InboundMessage) media() *media {
	for _, md := range []*media{m.Image, m.Video, m.Document, m.Audio, m.Sticker} {
		if md != nil {
			return md
		}
	}
	return nil
}

func contactNames(contacts []contact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if name := strings.TrimSpace(c.Profile.Name); name != "" {
			names[c.WaID] = name
		}
	}
	return names
}
