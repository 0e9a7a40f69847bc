// Package transport defines the messaging contract between the workflow
// and front-end adapters: outbound message delivery, inbound interaction
// handling, access control, and the compact callback codec.
package transport
