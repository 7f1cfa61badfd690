package collab

// Message types accepted from clients.
const (
	TypeJoin           = "join"
	TypeContentUpdate  = "content_update"
	TypeOperation      = "operation"
	TypeGetDocument    = "get_document"
	TypeCursorPosition = "cursor_position"
)

// Message types emitted to clients.
const (
	TypeOnlineUsers     = "online_users"
	TypeUserJoin        = "user_join"
	TypeUserLeave       = "user_leave"
	TypeDocumentContent = "document_content"
	TypeCursorUpdate    = "cursor_position_update"
)

// Close codes distinguish connect-time rejections so clients can branch
// between fixing the link and re-authenticating.
const (
	CloseInvalidDocument  = 4000
	CloseIdentityRejected = 4001
	CloseAccessDenied     = 4003
)

// UserInfo identifies a participant on the wire.
type UserInfo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Envelope is the single JSON frame shape shared by every message type; Type
// discriminates. Optional numeric fields are pointers so a missing field can
// be told apart from zero when validating inbound frames.
type Envelope struct {
	Type           string     `json:"type"`
	DocID          string     `json:"docId,omitempty"`
	UserID         string     `json:"userId,omitempty"`
	Username       string     `json:"username,omitempty"`
	Content        *string    `json:"content,omitempty"`
	OperationType  string     `json:"operationType,omitempty"`
	Position       *int       `json:"position,omitempty"`
	Version        *int       `json:"version,omitempty"`
	CursorPosition *int       `json:"cursorPosition,omitempty"`
	Users          []UserInfo `json:"users,omitempty"`
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func rosterMessage(docID string, users []UserInfo) Envelope {
	return Envelope{Type: TypeOnlineUsers, DocID: docID, Users: users}
}

func presenceMessage(msgType, docID string, user UserInfo) Envelope {
	return Envelope{Type: msgType, DocID: docID, UserID: user.UserID, Username: user.Username}
}

func snapshotMessage(docID, content string, version int) Envelope {
	return Envelope{
		Type:    TypeDocumentContent,
		DocID:   docID,
		Content: strPtr(content),
		Version: intPtr(version),
	}
}
