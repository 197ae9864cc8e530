// session provides cognito.SessionStore implementations.
//
// MemoryStore keeps sessions in memory and gives the client an opaque id
// cookie. CookieStore keeps the whole session in an encrypted, authenticated
// cookie.
package session
