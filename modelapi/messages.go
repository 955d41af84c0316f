package modelapi

const (
	ASSISTANT = "assistant"
	SYSTEM    = "system"
	USER      = "user"
)

// DialogMessage is one turn of a practice dialog. The salesperson speaks as
// USER, the role-played client as ASSISTANT.
type DialogMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
