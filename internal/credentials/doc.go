// Package credentials persists the two WiFi credential slots, the station
// static IP configuration and the values of custom portal parameters.
//
// Three backends implement Store:
//   - FileStore: a YAML document written atomically (tmp file + rename)
//   - BoltStore: a bbolt database with JSON values in a single bucket
//   - MemoryStore: process memory, for tests and the simulated radio
//
// Only the portal save handler and Reset write to a store, so backends do
// not coordinate writers beyond their own file locking.
package credentials
