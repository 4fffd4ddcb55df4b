// Package redisserver serves the kvmesh store over the Redis protocol.
//
// Only the RESP2 subset a plain key-value client needs is implemented:
//
//   - PING, QUIT, AUTH, SELECT 0, COMMAND
//   - GET, SET, DEL, EXISTS, DBSIZE
//
// Store errors are returned as "-ERR <code> <message>" using the same codes
// as the HTTP API. Missing keys read as a null bulk string. When an API key
// is configured, every data command requires a prior AUTH on the
// connection.
package redisserver
