// Package events provides run event publishers and subscribers.
//
// Implementations:
//   - memory: in-process bus with buffered per-subscriber channels
//   - redis: Redis Pub/Sub with JSON payloads
//   - socketio: Socket.IO server broadcasting every event to connected clients
//   - fanout: publishes one event to several publishers
package events
