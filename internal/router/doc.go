// Package router holds the client's named routes and the authentication
// guard consulted before entering a protected route.
package router
