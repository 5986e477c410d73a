// Package messaging publishes and consumes broker messages behind one API.
//
// Drivers: an in-process memory broker (single node, tests), NATS, Kafka, NSQ
// and Google Pub/Sub. Consumers name a group; within a group each message is
// handled once, across groups every group gets its own copy.
package messaging
