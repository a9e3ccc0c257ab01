// Package peer coordinates hardware ownership with a cooperating TV
// application over NATS.
//
// While a TV application owns the capture card the node runs in slave mode:
// it does not scan the PCI bus or lock the card and only observes the data
// the application shares. The application announces itself on attach and
// detach; the node answers with its acquisition status.
//
// # Architecture
//
//   - Server: optional embedded NATS server (vbinode serve --nats-embedded)
//   - Bridge: node side; turns attach/detach into slave mode changes and
//     publishes status from the event bus
//   - Client: application side; announces attach/detach and follows status
//
// # Subject Hierarchy
//
//	vbinode.peer.attach   # peer takes the hardware (peer → node)
//	vbinode.peer.detach   # peer releases the hardware (peer → node)
//	vbinode.acq.status    # acquisition status (node → peers)
//
// Core NATS only, no JetStream. The node keeps running stand-alone when
// NATS is unreachable.
//
// # Debugging with nats CLI
//
// Watch all node traffic:
//
//	nats sub "vbinode.>"
//
// Attach a fake TV application by hand:
//
//	nats pub vbinode.peer.attach '{"peer":"tvapp@desk","reason":"manual"}'
//
// # Message Formats
//
// PeerMessage (vbinode.peer.attach, vbinode.peer.detach):
//
//	{
//	  "peer": "tvapp@desk",
//	  "timestamp": "2026-01-01T12:00:00Z",
//	  "reason": "channel_scan"
//	}
//
// StatusMessage (vbinode.acq.status):
//
//	{
//	  "node": "vbinode",
//	  "timestamp": "2026-01-01T12:00:00Z",
//	  "state": "slave_observing",
//	  "card_index": 0,
//	  "slave": true,
//	  "reason": "peer_attach"
//	}
package peer
