// Package auth produces per-request credentials for provider calls.
// The strategy set is closed: static bearer tokens, short-TTL HS256
// JWTs, consumer-site cookie sessions, and Tencent COS presigned PUTs.
// Each strategy is a pure function over credentials and the outgoing
// request; provider crypto never leaks into call sites.
package auth
