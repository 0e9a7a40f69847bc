// Package notifications publishes operator notifications to an ntfy topic.
package notifications
