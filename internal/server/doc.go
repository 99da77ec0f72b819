// Package server implements the JSON-over-HTTP API surface of orgdrive.
//
// Every route lives under /v1/{drive}/ where {drive} must match the
// hosted tenant's drive ID. Requests carry an API key in the
// Authorization header; the key resolves to the acting user and every
// handler runs with that principal. Responses use a fixed envelope:
//
//	{ "ok":  { "data": <payload> } }
//	{ "err": { "code": <u16>, "message": <string> } }
//
// Handlers are thin: they decode input, run the operation against the
// tenant engine (reads under Run, mutations under Mutate so each write
// lands in the diff history), fire matching webhooks, and project the
// result through the redaction layer before it leaves the process.
package server
