// Package core contains the connection broker's domain contracts,
// entities, and orchestration logic: the authorization handshake, the
// linking engine, token lifecycle, and the publish adapter. Platform
// and storage adapters depend on this package; core must not depend on
// platform-specific or transport-specific adapters.
package core
