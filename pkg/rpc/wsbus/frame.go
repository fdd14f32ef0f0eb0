package wsbus

// Frames are exchanged as JSON text messages.
//
//	client -> server: pub, req, sub, unsub
//	server -> client: msg, noresp
const (
	opPublish     = "pub"
	opRequest     = "req"
	opSubscribe   = "sub"
	opUnsubscribe = "unsub"
	opMessage     = "msg"
	opNoResponder = "noresp"
)

type frame struct {
	Op      string `json:"op"`
	SID     uint64 `json:"sid,omitempty"`
	Subject string `json:"subject,omitempty"`
	Reply   string `json:"reply,omitempty"`
	Data    []byte `json:"data,omitempty"`
}
