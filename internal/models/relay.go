package models

/**
 * Inbound chat event (chat platform -> relay)
 * @property {string} messageId - Platform assigned message identity, used for dedup
 * @property {string} channelId - Origin channel identity
 * @property {string} authorId - Platform identity of the speaker
 * @property {string} authorName - Display name of the speaker
 * @property {string} content - Raw message text
 * @property {[]Attachment} attachments - Attached files
 */
type ChatEvent struct {
	MessageID   string       `json:"messageId"`
	ChannelID   string       `json:"channelId"`
	AuthorID    string       `json:"authorId"`
	AuthorName  string       `json:"authorName,omitempty"`
	Content     string       `json:"content"`
	Bot         bool         `json:"bot,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

/**
 * Outbound chat payload (relay -> chat platform)
 * @property {string} content - Formatted message text
 * @property {[]string} mentions - Platform user ids allowed to be pinged
 * @property {[]Attachment} attachments - Files delivered with the message
 * @property {[]Embed} embeds - Media embeds built from enriched links
 */
type ChatPayload struct {
	Content     string       `json:"content"`
	Mentions    []string     `json:"mentions,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Embeds      []Embed      `json:"embeds,omitempty"`
}

type Embed struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}
