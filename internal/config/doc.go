// Package config loads inboxfleet settings.
//
// Sources are merged with the priority flags > environment > YAML file >
// defaults. Environment variables use the INBOXFLEET_ prefix, with the
// remaining underscores separating key segments:
//
//	INBOXFLEET_STORE_DIR=/var/lib/inboxfleet   -> store.dir
//	INBOXFLEET_SEND_PARALLEL=4                 -> send.parallel
package config
