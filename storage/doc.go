// Package storage provides the persistence interface and shared record types
// for the mcp-auth authorization server.
//
// The Datastore interface covers the full durable state of the server:
//   - OAuth client registrations
//   - user accounts with hashed credentials
//   - access and refresh token records mirrored from the in-memory index
//
// Authorization codes are intentionally absent: they live only in the
// server's in-memory working set and are short-lived enough that loss on
// restart is acceptable.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory storage for development and testing
//   - storage/sqlite: embedded single-file storage (modernc.org/sqlite)
//   - storage/postgres: networked relational storage (jmoiron/sqlx + lib/pq)
package storage
