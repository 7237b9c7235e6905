// Package matrix connects coven-operator to Matrix rooms.
//
// # Overview
//
// The Bridge logs in to a homeserver, syncs, and turns every text message
// from an allowed user in an allowed room into either a chat command or an
// agent request. Each room is one conversation: the room ID is the
// conversation key used by the orchestrator and the runtime state.
//
// # Transport
//
// Each room gets a Transport implementing relay.Transport:
//
//   - Send posts an m.text message, rendered from Markdown to HTML with goldmark
//   - SendStatus posts an m.notice that acts as the live status indicator
//   - EditStatus replaces the notice with an m.replace edit
//   - DeleteStatus redacts the notice
//
// Sends and edits for a room share a token-bucket limiter so long-running
// requests never flood the homeserver with edits.
//
// # Encryption
//
// When a recovery key is configured, SetupCrypto enables end-to-end
// encryption through mautrix's cryptohelper, storing keys in a per-user
// SQLite database under the data directory.
//
// # Rooms and Filtering
//
// Invites are accepted automatically, subject to the allowed_rooms and
// allowed_users lists. Messages sent by the bot itself and events older
// than the bridge's start time are ignored, so a restart never replays
// history into the agents.
package matrix
