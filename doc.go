// Package tabular is a typed query and update engine for tables living on
// slow, remote, line-oriented backends.
//
// Declare table layouts with schema, read and write rows through query and
// record, and plug in a backend implementation: the real device transport,
// or the bundled in-memory (backend/hashmap) and persistent (backend/bbolt)
// stores for development and tests.
package tabular
