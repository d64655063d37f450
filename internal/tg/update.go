package tg

type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *Message       `json:"message"`
	ChannelPost   *Message       `json:"channel_post"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

type Message struct {
	MessageID int         `json:"message_id"`
	From      *User       `json:"from"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Document  *Document   `json:"document"`
	Video     *Document   `json:"video"`
	Photo     []PhotoSize `json:"photo"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

// File returns the attached document or video, if any.
func (m *Message) File() *Document {
	switch {
	case m.Document != nil:
		return m.Document
	case m.Video != nil:
		return m.Video
	default:
		return nil
	}
}

// SenderID is the user id, or 0 for anonymous channel posts.
func (m *Message) SenderID() int64 {
	if m.From == nil {
		return 0
	}
	return m.From.ID
}

func (m *Message) IsPrivate() bool { return m.Chat.Type == "private" }
