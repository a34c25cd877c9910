// Package report renders results for people: Console prints live progress as
// the dispatcher emits events, and Write prints the finished result tree.
package report
