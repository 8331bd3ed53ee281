package notify

// Payload is the JSON body POSTed to a Discord-compatible incoming webhook.
type Payload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds"`
}

type Embed struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Color       int        `json:"color"`
	Footer      *Footer    `json:"footer,omitempty"`
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty"`
	Fields      []Field    `json:"fields,omitempty"`
}

type Footer struct {
	Text string `json:"text"`
}

type Thumbnail struct {
	URL string `json:"url"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// MentionEveryone is the content marker that pings the whole channel.
const MentionEveryone = "@everyone"

// Title returns the first embed title, or "" for an empty payload.
func (p Payload) Title() string {
	if len(p.Embeds) == 0 {
		return ""
	}
	return p.Embeds[0].Title
}
