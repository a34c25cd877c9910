// Package protocol groups the typed message sets the category plugins speak
// to an endpoint. Wire encodings and the DOE mailbox transport live behind
// each Session interface.
package protocol
