// Package stream carries the chunk transfer sessions independently of the
// transport. gRPC and WebSocket handlers adapt their connections to Receiver
// and Sender and hand them to UploadSession or Reconstruct.
package stream

// UploadMessage is one chunk sent by a client. The last message of an
// upload has End set and no payload.
type UploadMessage struct {
	Index uint64 `json:"index"`
	Hash  string `json:"hash"`
	Data  []byte `json:"data"`
	End   bool   `json:"end,omitempty"`
}

// DownloadMessage is one chunk sent to a reader. Error replaces Data when the
// chunk could not be fetched. The final message has Done set.
type DownloadMessage struct {
	Index uint64 `json:"index"`
	Data  []byte `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Done  bool   `json:"done,omitempty"`
}

// Receiver yields upload messages. io.EOF means the peer closed the stream.
type Receiver interface {
	Recv() (*UploadMessage, error)
}

// Sender delivers download messages. An error means the peer is gone.
type Sender interface {
	Send(*DownloadMessage) error
}
