// Package realtimeapi implements the realtime-api service which owns the
// voice-session plane of the Prepd mock-interview platform.
//
// The service provides:
//   - Session creation with ephemeral provider credential issuance
//   - WebRTC SDP offer/answer relay against the realtime speech provider
//   - Session lifecycle management (create, get, send input, end)
//   - Input relaying over open provider channels
//   - Idle-session reaping
//   - JWT authentication via Keycloak
//
// For more information, see the README.md file.
package realtimeapi
