// Package inbound adapts platform OAuth redirect callbacks into core
// requests and turns their outcomes into frontend redirects. It owns no
// HTTP server; hosts mount the gateway behind whatever router they use.
package inbound
