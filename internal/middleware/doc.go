// Package middleware provides HTTP middleware for the control server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - Gzip compression of JSON and YAML responses
//
// Every wrapper passes Hijack through so the websocket event stream can
// upgrade behind the full chain.
package middleware
