package peer

import "encoding/json"

// Subjects used between the node and its peers.
const (
	SubjectPeerAttach = "vbinode.peer.attach"
	SubjectPeerDetach = "vbinode.peer.detach"
	SubjectAcqStatus  = "vbinode.acq.status"
)

// PeerMessage announces that a peer takes or releases the hardware.
type PeerMessage struct {
	Peer      string `json:"peer"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m PeerMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// StatusMessage is the node's acquisition status.
type StatusMessage struct {
	Node      string `json:"node"`
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
	CardIndex int    `json:"card_index"`
	SessionID string `json:"session_id,omitempty"`
	Slave     bool   `json:"slave"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m StatusMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalPeer deserializes a PeerMessage from JSON.
func UnmarshalPeer(data []byte) (PeerMessage, error) {
	var m PeerMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalStatus deserializes a StatusMessage from JSON.
func UnmarshalStatus(data []byte) (StatusMessage, error) {
	var m StatusMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
