package common

// SessionCookieName is the cookie that carries the signed session token.
const SessionCookieName = "token"

// BearerPrefix is accepted on the Authorization header as an alternative to the cookie.
const BearerPrefix = "Bearer "
